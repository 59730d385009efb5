package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"vessel-cbm-monitor/internal/models"
	"vessel-cbm-monitor/internal/parser"
	"vessel-cbm-monitor/internal/store"
)

func normalizer() *parser.Normalizer {
	return parser.NewNormalizer(parser.NewResolver(nil), parser.DefaultOptions(), nil).
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
}

func engineRows(code string, n int) []models.Row {
	rows := make([]models.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.Row{
			parser.ColumnEquipmentCode: models.TextCell(code),
			parser.ColumnComponent:     models.TextCell("Main Engine"),
			parser.ColumnDate:          models.NumberCell(float64(45000 + i)),
			models.ParamVelocity:       models.NumberCell(2.5),
		})
	}
	return rows
}

// fakeReader serves rows by base name and fails for names in errs.
type fakeReader struct {
	rows map[string][]models.Row
	errs map[string]error
}

func (f fakeReader) read(filename string) ([]models.Row, error) {
	name := filepath.Base(filename)
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return f.rows[name], nil
}

type recordingSaver struct {
	calls int
	last  int
	err   error
}

func (r *recordingSaver) Save(_ context.Context, s *store.Store) error {
	r.calls++
	r.last = s.Len()
	return r.err
}

func TestRunRequiresFiles(t *testing.T) {
	p := New(store.New(), normalizer(), nil)
	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = p.IngestBatches(context.Background(), []RowBatch{})
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestRunIsolatesFailingFiles(t *testing.T) {
	reader := fakeReader{
		rows: map[string][]models.Row{
			"CBM Aurora.xlsx":   engineRows("ME-01", 3),
			"CBM Borealis.xlsx": engineRows("ME-02", 2),
		},
		errs: map[string]error{
			"CBM Gone.xlsx":   &fs.PathError{Op: "open", Path: "CBM Gone.xlsx", Err: fs.ErrNotExist},
			"CBM Notes.txt":   fmt.Errorf("%w: txt", parser.ErrUnsupportedFormat),
			"CBM Broken.xlsx": errors.New("zip: not a valid zip file"),
		},
	}
	s := store.New()
	p := New(s, normalizer(), nil, WithReader(reader.read))

	result, err := p.Run(context.Background(), []string{
		"/in/CBM Aurora.xlsx",
		"/in/CBM Gone.xlsx",
		"/in/CBM Notes.txt",
		"/in/CBM Broken.xlsx",
		"/in/CBM Borealis.xlsx",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, 2, result.ProcessedFiles)
	assert.Equal(t, 5, result.Records)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "CBM Aurora.xlsx", result.Files[0].File)
	assert.Equal(t, "Aurora", result.Files[0].Vessel)
	assert.Equal(t, "Borealis", result.Files[1].Vessel)

	require.Len(t, result.Failures, 3)
	assert.Equal(t, models.FileFailure{File: "CBM Gone.xlsx", Category: FailureRead, Error: result.Failures[0].Error}, result.Failures[0])
	assert.Equal(t, FailureUnsupported, result.Failures[1].Category)
	assert.Equal(t, FailureParse, result.Failures[2].Category)
	assert.Equal(t, "CBM Broken.xlsx", result.Failures[2].File)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, []string{"Aurora", "Borealis"}, s.Vessels())
	require.Len(t, result.Quality, 2)
}

func TestRunResetsStoreBetweenBatches(t *testing.T) {
	reader := fakeReader{rows: map[string][]models.Row{
		"CBM Aurora.xlsx":   engineRows("ME-01", 4),
		"CBM Borealis.xlsx": engineRows("ME-02", 1),
	}}
	s := store.New()
	p := New(s, normalizer(), nil, WithReader(reader.read))

	_, err := p.Run(context.Background(), []string{"CBM Aurora.xlsx"})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), []string{"CBM Borealis.xlsx"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"Borealis"}, s.Vessels())
}

func TestRunRejectsConcurrentBatch(t *testing.T) {
	p := New(store.New(), normalizer(), nil)
	p.mu.Lock()
	_, err := p.Run(context.Background(), []string{"CBM Aurora.xlsx"})
	p.mu.Unlock()
	assert.ErrorIs(t, err, ErrBatchInProgress)

	_, err = p.IngestBatches(context.Background(), []RowBatch{{Name: "CBM Aurora.xlsx", Rows: engineRows("ME-01", 1)}})
	assert.NoError(t, err)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	p := New(store.New(), normalizer(), nil, WithReader(fakeReader{}.read))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Run(ctx, []string{"CBM Aurora.xlsx"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.ProcessedFiles)
}

func TestIngestBatchesDerivesVesselAndSaves(t *testing.T) {
	saver := &recordingSaver{}
	s := store.New()
	p := New(s, normalizer(), nil, WithSaver(saver))

	result, err := p.IngestBatches(context.Background(), []RowBatch{
		{Name: "CBM Aurora.xlsx", Rows: engineRows("ME-01", 2)},
		{Name: "upload-2", Vessel: "Borealis", Rows: engineRows("ME-02", 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, []string{"Aurora", "Borealis"}, s.Vessels())
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, 3, saver.last)
}

func TestIngestBatchesRejectsMissingVessel(t *testing.T) {
	s := store.New()
	p := New(s, normalizer(), nil)

	result, err := p.IngestBatches(context.Background(), []RowBatch{
		{Name: "CBM.xlsx", Rows: engineRows("ME-01", 1)},
		{Name: "", Rows: engineRows("ME-02", 2)},
		{Name: "upload", Vessel: "  ", Rows: engineRows("ME-03", 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedFiles)
	assert.Equal(t, "CBM", result.Files[0].Vessel)
	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		assert.Equal(t, FailureParse, f.Category)
		assert.Equal(t, ErrNoVessel.Error(), f.Error)
	}
	assert.Equal(t, []string{"CBM"}, s.Vessels())
	assert.NotContains(t, s.Vessels(), "")
}

func TestSaveFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	saver := &recordingSaver{err: errors.New("disk full")}
	p := New(store.New(), normalizer(), zap.New(core), WithSaver(saver))

	_, err := p.IngestBatches(context.Background(), []RowBatch{{Name: "CBM Aurora.xlsx", Rows: engineRows("ME-01", 1)}})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("failed to save state").Len())
}

func TestRunWithDefaultReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "CBM Aurora.csv")
	data := "MP_NUMBER,COMP_NAME,DATE,RPM1\nME-01,Main Engine,45000,900\nME-01,Main Engine,45001,910\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s := store.New()
	p := New(s, normalizer(), nil)
	result, err := p.Run(context.Background(), []string{path, filepath.Join(dir, "CBM Missing.csv")})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Records)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, FailureRead, result.Failures[0].Category)
	assert.Equal(t, []string{"ME-01"}, s.EquipmentCodes("Aurora"))
}
