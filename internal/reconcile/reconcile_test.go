package reconcile

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vvka-141/pgstitch/internal/files/filesystem"
	"github.com/vvka-141/pgstitch/pkg/pgstitch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var txt, null = pgstitch.TextCell, pgstitch.NullCell()

func profitFS() *filesystem.MemoryFileSystem {
	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddFile("sales/2022.csv", "date,sales,cost,profit\n2022-01-01,10,4,6\n2022-01-02,12,5,7\n")
	mfs.AddFile("sales/2023.csv", "date,sales,cost,profit\n2023-01-01,20,8,12\n")
	mfs.AddFile("sales/2024.csv", "date,sales,cost,profit,profit2\n2024-01-01,30,10,20,21\n")
	return mfs
}

var profitPaths = []string{"sales/2022.csv", "sales/2023.csv", "sales/2024.csv"}

func newReconciler(tb testing.TB, mfs filesystem.Provider, opts pgstitch.ReconcileOptions) *Reconciler {
	tb.Helper()
	r, err := New(mfs, opts, nil)
	require.NoError(tb, err)
	return r
}

func drain(tb testing.TB, src pgstitch.BatchSource) []*pgstitch.UnifiedBatch {
	tb.Helper()
	defer src.Close()
	var out []*pgstitch.UnifiedBatch
	for {
		b, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(tb, err)
		out = append(out, b)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, pgstitch.ReconcileOptions{}, nil)
	assert.ErrorIs(t, err, pgstitch.ErrInvalidConfig)

	_, err = New(filesystem.NewMemoryFileSystem(), pgstitch.ReconcileOptions{ChunkRows: -5}, nil)
	assert.ErrorIs(t, err, pgstitch.ErrInvalidConfig)

	r, err := New(filesystem.NewMemoryFileSystem(), pgstitch.ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, pgstitch.DefaultChunkRows, r.Options().ChunkRows)
}

func TestDiscover_ProfitScenario(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{})

	d, err := r.Discover(context.Background(), profitPaths)
	require.NoError(t, err)
	assert.Empty(t, d.Unreadable)

	m := d.Matrix
	assert.Equal(t, []string{"date", "sales", "cost", "profit", "profit2"}, m.Columns)
	assert.Equal(t, [][]bool{
		{true, true, true, true, false},
		{true, true, true, true, false},
		{true, true, true, true, true},
	}, m.Present)
	assert.False(t, m.Has(0, "profit2"))
	assert.False(t, m.Has(1, "profit2"))
	assert.True(t, m.Has(2, "profit2"))
	assert.Equal(t, profitPaths, d.Paths())
	assert.Greater(t, m.Files[0].SizeBytes, int64(0))
}

func TestDiscover_EmptyInput(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{})
	_, err := r.Discover(context.Background(), nil)
	assert.ErrorIs(t, err, pgstitch.ErrEmptyInput)
}

func TestDiscover_OneUnreadableAmongThree(t *testing.T) {
	mfs := profitFS()
	mfs.AddUnreadable("sales/2023.csv", fs.ErrPermission)
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	d, err := r.Discover(context.Background(), profitPaths)
	require.NoError(t, err)
	require.Len(t, d.Unreadable, 1)
	assert.Equal(t, "sales/2023.csv", d.Unreadable[0].Path)
	assert.ErrorIs(t, d.Unreadable[0], fs.ErrPermission)
	assert.ErrorIs(t, d.UnreadableErr(), pgstitch.ErrUnreadableFile)
	assert.Equal(t, []string{"sales/2022.csv", "sales/2024.csv"}, d.Paths())
}

func TestDiscover_NoReadableFiles(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddFile("empty.csv", "")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	_, err := r.Discover(context.Background(), []string{"empty.csv", "missing.csv"})
	require.ErrorIs(t, err, pgstitch.ErrNoReadableFiles)

	var unreadable *pgstitch.UnreadableFileError
	require.ErrorAs(t, err, &unreadable)
	assert.Equal(t, "empty.csv", unreadable.Path)
}

func TestDiscover_HeaderProblems(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty file", "", "no header row"},
		{"blank header", "\n\n", "no header row"},
		{"duplicate column", "a,b,a\n1,2,3\n", "duplicate column"},
		{"empty column name", "a,,c\n", "is empty"},
		{"bad quoting", "a,\"b\n", "failed to parse header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfs := filesystem.NewMemoryFileSystem()
			mfs.AddFile("bad.csv", tt.content)
			mfs.AddFile("good.csv", "a\n1\n")
			r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

			d, err := r.Discover(context.Background(), []string{"bad.csv", "good.csv"})
			require.NoError(t, err)
			require.Len(t, d.Unreadable, 1)
			assert.Contains(t, d.Unreadable[0].Error(), tt.wantErr)
		})
	}
}

func TestDiscover_RenameAndBOM(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddFile("a.csv", "\ufeffDate,Revenue\n")
	mfs.AddFile("b.csv", "date;sales\n")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{Rename: map[string]string{"Date": "date", "Revenue": "sales"}})

	d, err := r.Discover(context.Background(), []string{"a.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "sales"}, d.Matrix.Columns)

	semi := newReconciler(t, mfs, pgstitch.ReconcileOptions{Delimiter: ';'})
	d, err = semi.Discover(context.Background(), []string{"b.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "sales"}, d.Matrix.Columns)
}

func TestDiscover_ParallelKeepsInputOrder(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	var paths []string
	for i := range 20 {
		p := fmt.Sprintf("f%02d.csv", 19-i)
		mfs.AddFile(p, fmt.Sprintf("c%d,shared\n", i))
		paths = append(paths, p)
	}
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{DiscoverWorkers: 4})

	d, err := r.Discover(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, paths, d.Paths())
	assert.Equal(t, "c0", d.Matrix.Columns[0])
	assert.Equal(t, "shared", d.Matrix.Columns[1])
	assert.Equal(t, "c19", d.Matrix.Columns[20])
	assert.LessOrEqual(t, mfs.MaxConcurrentOpen(), 4)
	assert.Equal(t, 0, mfs.OpenFiles())
}

func TestDiscover_Cancelled(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{DiscoverWorkers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Discover(ctx, profitPaths)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeUnion(t *testing.T) {
	m := ComputeUnion([]pgstitch.FileDescriptor{
		{Path: "1", Columns: []string{"b", "a"}},
		{Path: "2", Columns: []string{"c", "a"}},
		{Path: "3", Columns: []string{"a", "d", "b"}},
	})
	assert.Equal(t, []string{"b", "a", "c", "d"}, m.Columns)
	assert.Equal(t, []string{"a"}, m.CommonColumns())
	assert.Equal(t, []string{"b", "c", "d"}, m.PartialColumns())
	assert.Equal(t, []string{"b", "d"}, m.MissingColumns(1))
	assert.False(t, m.AllEqual())

	assert.Empty(t, ComputeUnion(nil).Columns)
}

func TestCombine_ProfitScenario(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{})
	comb, err := r.Combine(context.Background(), profitPaths)
	require.NoError(t, err)

	got := drain(t, comb)
	cols := []string{"date", "sales", "cost", "profit", "profit2"}
	want := []*pgstitch.UnifiedBatch{
		{Source: "sales/2022.csv", FileIndex: 0, Chunk: 0, Sequence: 0, Columns: cols, Rows: [][]pgstitch.Cell{
			{txt("2022-01-01"), txt("10"), txt("4"), txt("6"), null},
			{txt("2022-01-02"), txt("12"), txt("5"), txt("7"), null},
		}},
		{Source: "sales/2023.csv", FileIndex: 1, Chunk: 0, Sequence: 1, Columns: cols, Rows: [][]pgstitch.Cell{
			{txt("2023-01-01"), txt("20"), txt("8"), txt("12"), null},
		}},
		{Source: "sales/2024.csv", FileIndex: 2, Chunk: 0, Sequence: 2, Columns: cols, Rows: [][]pgstitch.Cell{
			{txt("2024-01-01"), txt("30"), txt("10"), txt("20"), txt("21")},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, cols, comb.Columns())
}

func TestCombine_EmptyStringIsNotNull(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddFile("a.csv", "x,y\n,\"\"\n")
	mfs.AddFile("b.csv", "y\nv\n")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	comb, err := r.Combine(context.Background(), []string{"a.csv", "b.csv"})
	require.NoError(t, err)
	got := drain(t, comb)
	require.Len(t, got, 2)
	assert.Equal(t, []pgstitch.Cell{txt(""), txt("")}, got[0].Rows[0])
	assert.Equal(t, []pgstitch.Cell{null, txt("v")}, got[1].Rows[0])
}

func TestCombine_ChunkBound(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	var sb strings.Builder
	sb.WriteString("id,value\n")
	for i := range 25 {
		fmt.Fprintf(&sb, "%d,v%d\n", i, i)
	}
	mfs.AddFile("big.csv", sb.String())
	mfs.AddFile("small.csv", "id\n100\n")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{ChunkRows: 10})

	comb, err := r.Combine(context.Background(), []string{"big.csv", "small.csv"})
	require.NoError(t, err)
	got := drain(t, comb)

	var sizes, chunks, seqs []int
	for _, b := range got {
		sizes = append(sizes, b.Len())
		chunks = append(chunks, b.Chunk)
		seqs = append(seqs, b.Sequence)
		require.NoError(t, b.Validate())
	}
	assert.Equal(t, []int{10, 10, 5, 1}, sizes)
	assert.Equal(t, []int{0, 1, 2, 0}, chunks)
	assert.Equal(t, []int{0, 1, 2, 3}, seqs)
	assert.Equal(t, 1, mfs.MaxConcurrentOpen(), "only one input may be open while combining")
	assert.Equal(t, 0, mfs.OpenFiles())

	v, ok := got[3].Value(0, "value")
	require.True(t, ok)
	assert.False(t, v.Valid)
}

func TestCombine_Deterministic(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{ChunkRows: 1})

	run := func() []*pgstitch.UnifiedBatch {
		comb, err := r.Combine(context.Background(), profitPaths)
		require.NoError(t, err)
		return drain(t, comb)
	}
	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestCombine_AddFilename(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{AddFilename: true})
	comb, err := r.Combine(context.Background(), profitPaths)
	require.NoError(t, err)

	got := drain(t, comb)
	require.Len(t, got, 3)
	for _, b := range got {
		assert.Equal(t, "filepath", b.Columns[len(b.Columns)-1])
		for i := range b.Rows {
			v, _ := b.Value(i, "filepath")
			assert.Equal(t, txt(b.Source), v)
		}
	}

	named := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{AddFilename: true, FilenameColumn: "profit"})
	_, err = named.Combine(context.Background(), profitPaths)
	assert.ErrorIs(t, err, pgstitch.ErrInvalidConfig)
}

func TestCombine_HeaderOnlyFileContributesColumns(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddFile("a.csv", "x\n1\n")
	mfs.AddFile("b.csv", "x,extra\n")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	comb, err := r.Combine(context.Background(), []string{"a.csv", "b.csv"})
	require.NoError(t, err)
	got := drain(t, comb)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"x", "extra"}, got[0].Columns)
	assert.Equal(t, []pgstitch.Cell{txt("1"), null}, got[0].Rows[0])
}

func TestCombine_Transform(t *testing.T) {
	constants, err := ConstantColumns([]Constant{{Name: "region", Value: "emea"}})
	require.NoError(t, err)
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{
		Transform: pgstitch.ChainTransforms(DropColumns("cost"), constants),
	})

	comb, err := r.Combine(context.Background(), profitPaths)
	require.NoError(t, err)
	want := []string{"date", "sales", "profit", "profit2", "region"}
	assert.Equal(t, want, comb.Columns(), "declared columns come from the transform")

	for _, b := range drain(t, comb) {
		assert.Equal(t, want, b.Columns)
		v, _ := b.Value(0, "region")
		assert.Equal(t, txt("emea"), v)
	}
}

func TestCombine_TransformDrift(t *testing.T) {
	drift := func(b *pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) {
		if b.Sequence == 0 {
			return b, nil
		}
		return DropColumns("profit2")(b)
	}
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{Transform: drift})
	comb, err := r.Combine(context.Background(), profitPaths)
	require.NoError(t, err)
	defer comb.Close()

	_, err = comb.Next(context.Background())
	require.NoError(t, err)
	_, err = comb.Next(context.Background())
	assert.ErrorIs(t, err, pgstitch.ErrSchemaDrift)
}

func TestCombine_TransformErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		transform pgstitch.Transform
		want      string
	}{
		{"error", func(*pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) { return nil, boom }, "boom"},
		{"nil batch", func(*pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) { return nil, nil }, "no batch"},
		{"misaligned", func(b *pgstitch.UnifiedBatch) (*pgstitch.UnifiedBatch, error) {
			b.Columns = b.Columns[1:]
			return b, nil
		}, "misaligned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfs := profitFS()
			r := newReconciler(t, mfs, pgstitch.ReconcileOptions{Transform: tt.transform})
			comb, err := r.Combine(context.Background(), profitPaths)
			require.NoError(t, err)
			defer comb.Close()

			_, err = comb.Next(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCombine_FieldCountMismatch(t *testing.T) {
	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddFile("a.csv", "x,y\n1,2\n3\n")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	comb, err := r.Combine(context.Background(), []string{"a.csv"})
	require.NoError(t, err)
	defer comb.Close()

	_, err = comb.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.csv line 3")
	assert.Equal(t, 0, mfs.OpenFiles())
}

func TestCombine_CancelledBetweenBatches(t *testing.T) {
	mfs := profitFS()
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})
	comb, err := r.Combine(context.Background(), profitPaths)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = comb.Next(ctx)
	require.NoError(t, err)
	cancel()
	_, err = comb.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, comb.Close())
	require.NoError(t, comb.Close())
	assert.Equal(t, 0, mfs.OpenFiles())
}

func TestCombine_CompressedInput(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	mfs := filesystem.NewMemoryFileSystem()
	mfs.AddBytes("packed.csv.gz", buf.Bytes())
	mfs.AddFile("plain.csv", "b,c\n3,4\n")
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	comb, err := r.Combine(context.Background(), []string{"packed.csv.gz", "plain.csv"})
	require.NoError(t, err)
	got := drain(t, comb)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b", "c"}, got[0].Columns)
	assert.Equal(t, []pgstitch.Cell{txt("1"), txt("2"), null}, got[0].Rows[0])
	assert.Equal(t, []pgstitch.Cell{null, txt("3"), txt("4")}, got[1].Rows[0])
}

func TestCombine_HeaderChangedSinceDiscovery(t *testing.T) {
	mfs := profitFS()
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})
	d, err := r.Discover(context.Background(), profitPaths)
	require.NoError(t, err)

	mfs.AddFile("sales/2022.csv", "other\n1\n")
	comb, err := r.CombineDiscovery(d)
	require.NoError(t, err)
	_, err = comb.Next(context.Background())
	assert.ErrorContains(t, err, "changed since discovery")

	_, err = r.CombineDiscovery(nil)
	assert.ErrorIs(t, err, pgstitch.ErrNoReadableFiles)
}

func TestPreview(t *testing.T) {
	mfs := profitFS()
	r := newReconciler(t, mfs, pgstitch.ReconcileOptions{})

	d, batches, err := r.Preview(context.Background(), profitPaths, 1)
	require.NoError(t, err)
	assert.Len(t, d.Matrix.Files, 3)
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.Equal(t, 1, b.Len())
	}
	assert.Equal(t, "sales/2022.csv", batches[0].Source)
	assert.Equal(t, 0, mfs.OpenFiles())

	_, _, err = r.Preview(context.Background(), profitPaths, 0)
	assert.ErrorIs(t, err, pgstitch.ErrInvalidConfig)
}

func TestPreview_NoReadableFilesKeepsDiscovery(t *testing.T) {
	r := newReconciler(t, profitFS(), pgstitch.ReconcileOptions{})

	d, batches, err := r.Preview(context.Background(), []string{"sales/missing.csv"}, 1)
	require.ErrorIs(t, err, pgstitch.ErrNoReadableFiles)
	assert.Empty(t, batches)
	require.NotNil(t, d)
	assert.Nil(t, d.Matrix)
	require.Len(t, d.Unreadable, 1)
	assert.Equal(t, "sales/missing.csv", d.Unreadable[0].Path)
}
