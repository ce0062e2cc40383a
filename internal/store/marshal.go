package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/stackvm/internal/canonical"
)

// marshalErrors converts failure messages to canonical JSON TEXT for storage.
func marshalErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	data, err := canonical.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}

// unmarshalErrors parses a stored errors column. It always returns a
// non-nil slice.
func unmarshalErrors(data string) ([]string, error) {
	errs := []string{}
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if errs == nil {
		errs = []string{}
	}
	return errs, nil
}
