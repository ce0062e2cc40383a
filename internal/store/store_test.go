package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stackvm/internal/testutil"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesPragmasAndSchema(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.verifyPragma("journal_mode", "wal"))
	require.NoError(t, s.verifyPragma("synchronous", "1"))
	require.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	require.NoError(t, s.verifyPragma("user_version", "1"))

	var n int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_runs_program_hash'`,
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteRun(ctx, RunRecord{ID: "a", Seq: 1, Scenario: "s", Pass: true}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	runs, err := s2.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	seq, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := RunRecord{
		ID:          "run-1",
		Seq:         7,
		Scenario:    "add_two_numbers",
		ProgramHash: "eefd8f5d",
		Cycles:      5,
		Pass:        false,
		Errors:      []string{"Assertion failed: stack", "line <2> & \"quoted\""},
	}
	require.NoError(t, s.WriteRun(ctx, rec))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	var raw string
	require.NoError(t, s.DB().QueryRow(`SELECT errors FROM runs WHERE id = 'run-1'`).Scan(&raw))
	assert.Equal(t, `["Assertion failed: stack","line <2> & \"quoted\""]`, raw)
}

func TestWriteRun_NilErrorsStoredAsEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "ok", Seq: 1, Scenario: "s", Pass: true}))
	got, err := s.ReadRun(ctx, "ok")
	require.NoError(t, err)
	assert.NotNil(t, got.Errors)
	assert.Empty(t, got.Errors)
	assert.True(t, got.Pass)
}

func TestWriteRun_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.ErrorContains(t, s.WriteRun(ctx, RunRecord{Scenario: "s"}), "id is required")
	assert.ErrorContains(t, s.WriteRun(ctx, RunRecord{ID: "x"}), "scenario is required")

	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "x", Seq: 1, Scenario: "s"}))
	assert.Error(t, s.WriteRun(ctx, RunRecord{ID: "x", Seq: 2, Scenario: "s"}), "duplicate id")
	assert.Error(t, s.WriteRun(ctx, RunRecord{ID: "y", Seq: 1, Scenario: "s"}), "duplicate seq")
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "c", Seq: 3, Scenario: "b"}))
	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "a", Seq: 1, Scenario: "a"}))
	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "b", Seq: 2, Scenario: "b"}))

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	onlyB, err := s.ListRuns(ctx, "b")
	require.NoError(t, err)
	require.Len(t, onlyB, 2)
	assert.Equal(t, int64(2), onlyB[0].Seq)

	none, err := s.ListRuns(ctx, "zzz")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}

func TestRecorder_DeterministicIDsAndSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec, err := NewRecorder(ctx, s, testutil.NewSequentialIDs("run"))
	require.NoError(t, err)
	rec = rec.WithClock(testutil.NewDeterministicClock())

	r1, err := rec.Record(ctx, RunRecord{Scenario: "a", Pass: true})
	require.NoError(t, err)
	r2, err := rec.Record(ctx, RunRecord{Scenario: "b", Errors: []string{"boom"}})
	require.NoError(t, err)

	assert.Equal(t, "run-0001", r1.ID)
	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, "run-0002", r2.ID)
	assert.Equal(t, int64(2), r2.Seq)
	assert.Equal(t, []string{}, r1.Errors)

	got, err := s.ReadRun(ctx, "run-0002")
	require.NoError(t, err)
	assert.Equal(t, r2, got)
}

func TestRecorder_ResumesAfterLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, RunRecord{ID: "old", Seq: 41, Scenario: "a"}))

	rec, err := NewRecorder(ctx, s, nil)
	require.NoError(t, err)
	r, err := rec.Record(ctx, RunRecord{Scenario: "a"})
	require.NoError(t, err)

	assert.Equal(t, int64(42), r.Seq)
	parsed, err := uuid.Parse(r.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("x", "y")
	assert.Equal(t, "x", gen.Generate())
	assert.Equal(t, "y", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestClock(t *testing.T) {
	c := NewClockAt(10)
	assert.Equal(t, int64(10), c.Current())
	assert.Equal(t, int64(11), c.Next())
	assert.Equal(t, int64(11), c.Current())
}
