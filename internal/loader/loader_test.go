package loader

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pgstitch/internal/logging"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

var cols = []string{"date", "sales"}

func twoBatches() *sliceSource {
	return &sliceSource{columns: cols, batches: []*pgstitch.UnifiedBatch{
		batch(0, "a.csv", cols, []string{"d1", "1"}, []string{"d2", "2"}),
		batch(1, "b.csv", cols, []string{"d3", "<null>"}),
	}}
}

func newTestLoader(store pgstitch.TableStore, approver pgstitch.Approver, opts ...Option) *Loader {
	if approver == nil {
		approver = &stubApprover{approve: true}
	}
	return New(store, approver, logging.NewNullLogger(), opts...)
}

func target(policy pgstitch.IfExists) pgstitch.LoadTarget {
	return pgstitch.LoadTarget{Table: "sales", IfExists: policy}
}

func TestNew_PanicsOnNil(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"nil store", func() { New(nil, &stubApprover{}, logging.NewNullLogger()) }},
		{"nil approver", func() { New(newMemStore(), nil, logging.NewNullLogger()) }},
		{"nil logger", func() { New(newMemStore(), &stubApprover{}, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestLoad_CreatesTableAndCopiesInOrder(t *testing.T) {
	store := newMemStore()
	var progress []int
	l := newTestLoader(store, nil, WithProgress(func(r pgstitch.BatchResult) { progress = append(progress, r.Sequence) }))

	report, err := l.Load(context.Background(), twoBatches(), target(pgstitch.IfExistsFail))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.True(t, report.Created)
	assert.Equal(t, int64(3), report.Rows)
	assert.Equal(t, cols, report.Columns)
	assert.Equal(t, []int{0, 1}, progress)
	assert.Equal(t, []string{"columns sales", "create sales", "copy sales", "copy sales"}, store.calls)

	rows := store.rows["sales"]
	require.Len(t, rows, 3)
	assert.Equal(t, "d1", rows[0][0].String)
	assert.Equal(t, "d3", rows[2][0].String)
	assert.False(t, rows[2][1].Valid)

	order, counts := report.RowsBySource()
	assert.Equal(t, []string{"a.csv", "b.csv"}, order)
	assert.Equal(t, int64(2), counts["a.csv"])
}

func TestLoad_FailPolicyWithExistingTable(t *testing.T) {
	store := newMemStore()
	store.tables["sales"] = cols

	_, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsFail))
	assert.ErrorIs(t, err, pgstitch.ErrTableExists)
	assert.Equal(t, 0, store.copyCalls)
}

func TestLoad_Replace(t *testing.T) {
	t.Run("approved", func(t *testing.T) {
		store := newMemStore()
		store.tables["sales"] = []string{"old"}
		store.rows["sales"] = [][]pgstitch.Cell{{pgstitch.TextCell("x")}}
		approver := &stubApprover{approve: true}

		report, err := newTestLoader(store, approver).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsReplace))
		require.NoError(t, err)
		assert.True(t, report.Created)
		assert.Equal(t, []string{"sales"}, approver.asked)
		assert.Equal(t, cols, store.tables["sales"])
		assert.Len(t, store.rows["sales"], 3, "replace leaves exactly the loaded rows")
	})

	t.Run("denied", func(t *testing.T) {
		store := newMemStore()
		store.tables["sales"] = []string{"old"}

		_, err := newTestLoader(store, &stubApprover{}).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsReplace))
		assert.ErrorIs(t, err, pgstitch.ErrApprovalDenied)
		assert.Equal(t, []string{"old"}, store.tables["sales"])
	})

	t.Run("approver error", func(t *testing.T) {
		store := newMemStore()
		store.tables["sales"] = []string{"old"}

		_, err := newTestLoader(store, &stubApprover{err: errors.New("no tty")}).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsReplace))
		assert.ErrorContains(t, err, "approval request failed")
	})

	t.Run("missing table needs no approval", func(t *testing.T) {
		store := newMemStore()
		approver := &stubApprover{}

		_, err := newTestLoader(store, approver).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsReplace))
		require.NoError(t, err)
		assert.Empty(t, approver.asked)
	})

	t.Run("zero batches uses declared columns", func(t *testing.T) {
		store := newMemStore()
		store.tables["sales"] = []string{"old"}

		report, err := newTestLoader(store, nil).Load(context.Background(), &sliceSource{columns: cols}, target(pgstitch.IfExistsReplace))
		require.NoError(t, err)
		assert.Equal(t, cols, store.tables["sales"])
		assert.Zero(t, report.Rows)
		assert.Empty(t, store.rows["sales"])
	})
}

func TestLoad_Append(t *testing.T) {
	t.Run("superset table", func(t *testing.T) {
		store := newMemStore()
		store.tables["sales"] = []string{"id", "sales", "date", "extra"}

		report, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsAppend))
		require.NoError(t, err)
		assert.False(t, report.Created)
		assert.Len(t, store.rows["sales"], 3)
		assert.Equal(t, "d1", store.rows["sales"][0][2].String)
	})

	t.Run("missing columns", func(t *testing.T) {
		store := newMemStore()
		store.tables["sales"] = []string{"date"}

		_, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsAppend))
		var conflict *pgstitch.SchemaConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"sales"}, conflict.MissingColumns)
		assert.ErrorIs(t, err, pgstitch.ErrSchemaConflict)
		assert.Equal(t, 0, store.copyCalls)
	})

	t.Run("creates missing table", func(t *testing.T) {
		store := newMemStore()
		report, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsAppend))
		require.NoError(t, err)
		assert.True(t, report.Created)
	})
}

func TestLoad_BatchFailure(t *testing.T) {
	store := newMemStore()
	store.copyErrAt = 2

	report, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsFail))
	require.ErrorIs(t, err, pgstitch.ErrLoadFailed)

	var failure *pgstitch.LoadFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.Failed.Sequence)
	assert.Equal(t, "b.csv", failure.Failed.Source)
	require.Len(t, failure.Completed, 1)
	assert.Equal(t, "a.csv", failure.Completed[0].Source)
	assert.Equal(t, int64(2), report.Rows)
	assert.Equal(t, pgstitch.ExitLoadFailed, pgstitch.ExitCodeForError(err))
}

func TestLoad_SchemaDrift(t *testing.T) {
	src := &sliceSource{columns: cols, batches: []*pgstitch.UnifiedBatch{
		batch(0, "a.csv", cols, []string{"d1", "1"}),
		batch(1, "b.csv", []string{"date"}, []string{"d2"}),
	}}
	report, err := newTestLoader(newMemStore(), nil).Load(context.Background(), src, target(pgstitch.IfExistsFail))
	assert.ErrorIs(t, err, pgstitch.ErrSchemaDrift)
	assert.Len(t, report.Batches, 1)
}

func TestLoad_MisalignedBatch(t *testing.T) {
	bad := batch(0, "a.csv", cols, []string{"only-one"})
	_, err := newTestLoader(newMemStore(), nil).Load(context.Background(),
		&sliceSource{columns: cols, batches: []*pgstitch.UnifiedBatch{bad}}, target(pgstitch.IfExistsFail))
	assert.ErrorContains(t, err, "has 1 values for 2 columns")
}

func TestLoad_SourceError(t *testing.T) {
	boom := errors.New("disk gone")
	src := twoBatches()
	src.err = boom

	report, err := newTestLoader(newMemStore(), nil).Load(context.Background(), src, target(pgstitch.IfExistsFail))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, pgstitch.ErrLoadFailed)
	assert.Len(t, report.Batches, 2)

	var lf *pgstitch.LoadFailureError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, 2, lf.Failed.Sequence)
	assert.Len(t, lf.Completed, 2)
	assert.Equal(t, pgstitch.ExitLoadFailed, pgstitch.ExitCodeForError(err))

	first := &sliceSource{err: boom}
	_, err = newTestLoader(newMemStore(), nil).Load(context.Background(), first, target(pgstitch.IfExistsFail))
	assert.ErrorContains(t, err, "failed to read first batch")
}

func TestLoad_UsesResolvedTableName(t *testing.T) {
	store := newMemStore()
	store.resolved = "app.sales"
	store.tables["app.sales"] = slices.Clone(cols)

	report, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsAppend))
	require.NoError(t, err)
	assert.Equal(t, "app.sales", report.Table)
	assert.Equal(t, []string{"columns app.sales", "copy app.sales", "copy app.sales"}, store.calls)
	assert.Len(t, store.rows["app.sales"], 3)
}

func TestLoad_IdentifierTooLong(t *testing.T) {
	long := strings.Repeat("x", PostgresMaxIdentifierBytes+1)
	wide := []string{"date", long}
	source := func() *sliceSource {
		return &sliceSource{columns: wide, batches: []*pgstitch.UnifiedBatch{
			batch(0, "a.csv", wide, []string{"d1", "1"}),
		}}
	}

	// The server kept the truncated name; appending must not report it missing.
	store := limitedStore{memStore: newMemStore(), limit: PostgresMaxIdentifierBytes}
	store.tables["sales"] = []string{"date", long[:PostgresMaxIdentifierBytes]}
	_, err := newTestLoader(store, nil).Load(context.Background(), source(), target(pgstitch.IfExistsAppend))
	require.ErrorIs(t, err, pgstitch.ErrInvalidConfig)
	var conflict *pgstitch.SchemaConflictError
	assert.False(t, errors.As(err, &conflict))
	assert.ErrorContains(t, err, "64 bytes")
	assert.Empty(t, store.calls)

	store = limitedStore{memStore: newMemStore(), limit: PostgresMaxIdentifierBytes}
	_, err = newTestLoader(store, nil).Load(context.Background(), source(), pgstitch.LoadTarget{
		Table: "app." + long, IfExists: pgstitch.IfExistsFail,
	})
	require.ErrorIs(t, err, pgstitch.ErrInvalidConfig)
	assert.ErrorContains(t, err, "table name")

	// Stores without a limit take the name as is.
	plain := newMemStore()
	report, err := newTestLoader(plain, nil).Load(context.Background(), source(), target(pgstitch.IfExistsFail))
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Rows)
	assert.Equal(t, wide, plain.tables["sales"])
}

func TestLoad_CancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newMemStore()
	l := newTestLoader(store, nil, WithProgress(func(pgstitch.BatchResult) { cancel() }))

	report, err := l.Load(ctx, twoBatches(), target(pgstitch.IfExistsFail))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, pgstitch.ErrLoadFailed)
	assert.Len(t, report.Batches, 1, "committed batches stay")
	assert.Len(t, store.rows["sales"], 2)
}

func TestLoad_InvalidTarget(t *testing.T) {
	_, err := newTestLoader(newMemStore(), nil).Load(context.Background(), twoBatches(), pgstitch.LoadTarget{})
	assert.ErrorIs(t, err, pgstitch.ErrInvalidConfig)
}

func TestLoad_NoColumns(t *testing.T) {
	_, err := newTestLoader(newMemStore(), nil).Load(context.Background(), &sliceSource{}, target(pgstitch.IfExistsFail))
	assert.ErrorIs(t, err, pgstitch.ErrNoReadableFiles)
}

func TestLoad_MetadataError(t *testing.T) {
	store := newMemStore()
	store.columnsErr = errors.New("permission denied for schema")
	_, err := newTestLoader(store, nil).Load(context.Background(), twoBatches(), target(pgstitch.IfExistsFail))
	assert.ErrorContains(t, err, "permission denied")
}

func TestLoad_RateLimit(t *testing.T) {
	src := &sliceSource{columns: cols}
	for i := range 4 {
		src.batches = append(src.batches, batch(i, "a.csv", cols, []string{"d", "1"}))
	}
	l := newTestLoader(newMemStore(), nil, WithRateLimit(20))

	start := time.Now()
	report, err := l.Load(context.Background(), src, target(pgstitch.IfExistsFail))
	require.NoError(t, err)
	assert.Len(t, report.Batches, 4)
	// burst of one, then 50ms per batch
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestLoad_EmptyBatchesAreSkipped(t *testing.T) {
	store := newMemStore()
	src := &sliceSource{columns: cols, batches: []*pgstitch.UnifiedBatch{
		batch(0, "a.csv", cols),
		batch(1, "b.csv", cols, []string{"d", "1"}),
	}}
	report, err := newTestLoader(store, nil).Load(context.Background(), src, target(pgstitch.IfExistsFail))
	require.NoError(t, err)
	assert.Equal(t, 1, store.copyCalls)
	assert.Len(t, report.Batches, 1)
}
