package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stackvm/internal/processor"
)

// Scenario declares a program under test and what running it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Source is the program source. Exactly one of Source and SourceFile
	// is set; LoadScenario replaces SourceFile with the file's contents.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// SourceFile is a path to the program source, relative to the scenario.
	SourceFile string `yaml:"source_file,omitempty" json:"source_file,omitempty"`

	// Kernel is an optional kernel module source.
	Kernel string `yaml:"kernel,omitempty" json:"kernel,omitempty"`

	// Debug compiles the program in debug mode.
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty"`

	// Inputs seed the stack (push order) and the advice tape.
	Inputs ScenarioInputs `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Expect lists the outcomes to check. At least one must be set.
	Expect ExpectClause `yaml:"expect" json:"expect"`
}

// ScenarioInputs are the program inputs of a scenario.
type ScenarioInputs struct {
	Stack  []uint64 `yaml:"stack,omitempty" json:"stack,omitempty"`
	Advice []uint64 `yaml:"advice,omitempty" json:"advice,omitempty"`
}

// ExpectClause holds the expectations of a scenario.
type ExpectClause struct {
	// Stack is the expected visible stack after the last cycle, top first.
	Stack []uint64 `yaml:"stack,omitempty" json:"stack,omitempty"`

	// Memory is an expected word in the root memory context. Requires Stack.
	Memory *MemoryExpect `yaml:"memory,omitempty" json:"memory,omitempty"`

	// Error expects compilation or execution to fail.
	Error *ErrorExpect `yaml:"error,omitempty" json:"error,omitempty"`

	// Prove generates and verifies a proof of the run.
	Prove *ProveExpect `yaml:"prove,omitempty" json:"prove,omitempty"`
}

// MemoryExpect is an expected memory word.
type MemoryExpect struct {
	Address uint64   `yaml:"address" json:"address"`
	Word    []uint64 `yaml:"word" json:"word"`
}

// ErrorExpect is an expected failure.
type ErrorExpect struct {
	// Kind is "assembly" or "execution".
	Kind string `yaml:"kind" json:"kind"`

	// Contains must be a substring of the error message.
	Contains string `yaml:"contains" json:"contains"`
}

// ProveExpect configures a prove-and-verify check.
type ProveExpect struct {
	PublicInputs []uint64 `yaml:"public_inputs,omitempty" json:"public_inputs,omitempty"`

	// Tamper alters the first output and expects verification to fail.
	Tamper bool `yaml:"tamper,omitempty" json:"tamper,omitempty"`
}

// Test builds the harness test the scenario describes.
func (s *Scenario) Test() *Test {
	return NewTest(s.Source, s.Debug).
		WithKernel(s.Kernel).
		WithInputs(processor.ProgramInputs{Stack: s.Inputs.Stack, Advice: s.Inputs.Advice})
}

var scenarioFields = []string{
	"name", "description", "source", "source_file", "kernel", "debug", "inputs", "expect",
}

// LoadScenario loads a scenario from a .yaml, .yml or .cue file. A
// source_file path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath loads a scenario file, resolving source_file
// relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		scenario, err = parseCUEScenario(path, data)
	case ".yaml", ".yml":
		scenario, err = parseYAMLScenario(data)
	default:
		return nil, fmt.Errorf("unsupported scenario file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	if scenario.SourceFile != "" {
		if scenario.Source != "" {
			return nil, fmt.Errorf("invalid scenario: source and source_file are mutually exclusive")
		}
		sourcePath := scenario.SourceFile
		if !filepath.IsAbs(sourcePath) && basePath != "" {
			sourcePath = filepath.Join(basePath, sourcePath)
		}
		src, err := os.ReadFile(sourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
		scenario.Source = string(src)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func parseYAMLScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func parseCUEScenario(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	it, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}
	for it.Next() {
		if !slices.Contains(scenarioFields, it.Label()) {
			return nil, fmt.Errorf("failed to parse CUE: field %s not found in scenario", it.Label())
		}
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain spaces or path separators", s.Name)
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Source) == "" {
		return fmt.Errorf("source or source_file is required")
	}
	if len(s.Inputs.Stack) > W {
		return fmt.Errorf("inputs.stack: %d values exceed the limit of %d", len(s.Inputs.Stack), W)
	}

	e := s.Expect
	if e.Stack == nil && e.Memory == nil && e.Error == nil && e.Prove == nil {
		return fmt.Errorf("expect must declare at least one of stack, memory, error or prove")
	}
	if len(e.Stack) > W {
		return fmt.Errorf("expect.stack: %d values exceed the limit of %d", len(e.Stack), W)
	}
	if e.Memory != nil {
		if e.Stack == nil {
			return fmt.Errorf("expect.memory requires expect.stack")
		}
		if len(e.Memory.Word) == 0 {
			return fmt.Errorf("expect.memory: word is required")
		}
	}
	if e.Error != nil {
		switch TestErrorKind(e.Error.Kind) {
		case KindAssembly, KindExecution:
		default:
			return fmt.Errorf("expect.error: unknown kind %q (want assembly or execution)", e.Error.Kind)
		}
		if e.Error.Contains == "" {
			return fmt.Errorf("expect.error: contains is required")
		}
		if e.Stack != nil || e.Memory != nil || e.Prove != nil {
			return fmt.Errorf("expect.error cannot be combined with other expectations")
		}
	}
	return nil
}
