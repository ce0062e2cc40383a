package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// RunRecord is the persisted outcome of one scenario run.
type RunRecord struct {
	ID          string   `json:"id"`
	Seq         int64    `json:"seq"`
	Scenario    string   `json:"scenario"`
	ProgramHash string   `json:"program_hash,omitempty"`
	Cycles      int      `json:"cycles"`
	Pass        bool     `json:"pass"`
	Errors      []string `json:"errors"`
}

// WriteRun inserts a run record. Runs are append-only: writing an id that
// already exists returns an error.
func (s *Store) WriteRun(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("write run: id is required")
	}
	if rec.Scenario == "" {
		return fmt.Errorf("write run: scenario is required")
	}
	errsJSON, err := marshalErrors(rec.Errors)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scenario, program_hash, cycles, pass, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Seq,
		rec.Scenario,
		rec.ProgramHash,
		rec.Cycles,
		rec.Pass,
		errsJSON,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// ReadRun returns the run with the given id, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, scenario, program_hash, cycles, pass, errors
		FROM runs
		WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns runs in seq order. A non-empty scenario restricts the
// result to that scenario.
//
// Returns an empty slice (not nil) if no records match.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]RunRecord, error) {
	query := `
		SELECT id, seq, scenario, program_hash, cycles, pass, errors
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`
	var args []any
	if scenario != "" {
		query = `
			SELECT id, seq, scenario, program_hash, cycles, pass, errors
			FROM runs
			WHERE scenario = ?
			ORDER BY seq ASC, id COLLATE BINARY ASC
		`
		args = append(args, scenario)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest stored seq, 0 for an empty store.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		rec      RunRecord
		errsJSON string
	)
	if err := row.Scan(&rec.ID, &rec.Seq, &rec.Scenario, &rec.ProgramHash, &rec.Cycles, &rec.Pass, &errsJSON); err != nil {
		return RunRecord{}, err
	}
	errs, err := unmarshalErrors(errsJSON)
	if err != nil {
		return RunRecord{}, fmt.Errorf("run %s: %w", rec.ID, err)
	}
	rec.Errors = errs
	return rec, nil
}

// Recorder appends run records, assigning ids and seq numbers.
type Recorder struct {
	store *Store
	ids   IDGenerator
	clock Sequencer
}

// NewRecorder creates a recorder whose clock resumes after the last stored
// seq. A nil ids uses UUIDv7Generator.
func NewRecorder(ctx context.Context, s *Store, ids IDGenerator) (*Recorder, error) {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Recorder{store: s, ids: ids, clock: NewClockAt(last)}, nil
}

// WithClock returns a copy of the recorder that takes seq numbers from clock.
func (r *Recorder) WithClock(clock Sequencer) *Recorder {
	c := *r
	c.clock = clock
	return &c
}

// Record stamps rec with a fresh id and seq and stores it.
func (r *Recorder) Record(ctx context.Context, rec RunRecord) (RunRecord, error) {
	rec.ID = r.ids.Generate()
	rec.Seq = r.clock.Next()
	if err := r.store.WriteRun(ctx, rec); err != nil {
		return RunRecord{}, err
	}
	if rec.Errors == nil {
		rec.Errors = []string{}
	}
	return rec, nil
}
