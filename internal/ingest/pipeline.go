// Package ingest runs ingestion batches: reset the store, read each file in
// order, normalize its rows and record what happened.
package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vessel-cbm-monitor/internal/metrics"
	"vessel-cbm-monitor/internal/models"
	"vessel-cbm-monitor/internal/parser"
	"vessel-cbm-monitor/internal/store"
)

var (
	// ErrNoFiles is returned when a batch is started without input.
	ErrNoFiles = errors.New("no files selected")
	// ErrBatchInProgress is returned when another batch holds the lock.
	ErrBatchInProgress = errors.New("ingestion batch already in progress")
	// ErrNoVessel is recorded for a file whose vessel cannot be derived.
	ErrNoVessel = errors.New("no vessel name")
)

// Failure categories.
const (
	FailureRead        = "read"
	FailureParse       = "parse"
	FailureUnsupported = "unsupported"
)

// Saver persists the store after a batch.
type Saver interface {
	Save(ctx context.Context, s *store.Store) error
}

// ReadFunc decodes one file into rows.
type ReadFunc func(filename string) ([]models.Row, error)

// RowBatch is an already-decoded file.
type RowBatch struct {
	Name   string       `json:"name"`
	Vessel string       `json:"vessel"`
	Rows   []models.Row `json:"-"`
}

// Pipeline owns the batch lock and feeds files into the store.
type Pipeline struct {
	store      *store.Store
	normalizer *parser.Normalizer
	read       ReadFunc
	saver      Saver
	logger     *zap.Logger

	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSaver persists the store after every completed batch.
func WithSaver(s Saver) Option {
	return func(p *Pipeline) { p.saver = s }
}

// WithReader replaces the file decoder.
func WithReader(fn ReadFunc) Option {
	return func(p *Pipeline) { p.read = fn }
}

// New creates a pipeline writing into s.
func New(s *store.Store, n *parser.Normalizer, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		store:      s,
		normalizer: n,
		read:       parser.NewParser("").ParseFile,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run resets the store and ingests files in order. A file that cannot be
// read or parsed is recorded as a failure and the batch continues.
func (p *Pipeline) Run(ctx context.Context, files []string) (models.BatchResult, error) {
	if len(files) == 0 {
		return models.BatchResult{}, ErrNoFiles
	}

	batches := make([]func() (RowBatch, error), 0, len(files))
	for _, file := range files {
		file := file
		batches = append(batches, func() (RowBatch, error) {
			rows, err := p.read(file)
			return RowBatch{Name: filepath.Base(file), Vessel: parser.VesselName(file), Rows: rows}, err
		})
	}
	return p.run(ctx, batches)
}

// IngestBatches resets the store and ingests already-decoded batches. An
// empty Vessel is derived from Name.
func (p *Pipeline) IngestBatches(ctx context.Context, batches []RowBatch) (models.BatchResult, error) {
	if len(batches) == 0 {
		return models.BatchResult{}, ErrNoFiles
	}
	loaders := make([]func() (RowBatch, error), 0, len(batches))
	for _, b := range batches {
		b := b
		if b.Vessel == "" {
			b.Vessel = parser.VesselName(b.Name)
		}
		loaders = append(loaders, func() (RowBatch, error) { return b, nil })
	}
	return p.run(ctx, loaders)
}

func (p *Pipeline) run(ctx context.Context, loaders []func() (RowBatch, error)) (models.BatchResult, error) {
	if !p.mu.TryLock() {
		return models.BatchResult{}, ErrBatchInProgress
	}
	defer p.mu.Unlock()

	result := models.BatchResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Files:     []models.FileSummary{},
	}
	log := p.logger.With(zap.String("batch_id", result.ID))
	log.Info("ingestion batch started", zap.Int("files", len(loaders)))

	p.store.Reset()

	for _, load := range loaders {
		if err := ctx.Err(); err != nil {
			log.Warn("ingestion batch cancelled", zap.Error(err))
			result.Duration = time.Since(result.StartedAt)
			return result, err
		}

		start := time.Now()
		batch, err := load()
		if err == nil && strings.TrimSpace(batch.Vessel) == "" {
			err = ErrNoVessel
		}
		if err != nil {
			failure := models.FileFailure{File: batch.Name, Category: categorize(err), Error: err.Error()}
			result.Failures = append(result.Failures, failure)
			metrics.ObserveIngestFile(metrics.ResultError, time.Since(start))
			log.Warn("file skipped",
				zap.String("file", failure.File),
				zap.String("category", failure.Category),
				zap.Error(err),
			)
			continue
		}

		summary := p.store.Ingest(strings.TrimSpace(batch.Vessel), batch.Rows, p.normalizer)
		summary.File = batch.Name
		result.Files = append(result.Files, summary)
		result.ProcessedFiles++
		result.Records += summary.Readings

		metrics.ObserveIngestFile(metrics.ResultSuccess, time.Since(start))
		metrics.AddIngestCounts(summary.Readings, summary.TimestampDefects, summary.SkippedRows)
		log.Info("file ingested",
			zap.String("file", summary.File),
			zap.String("vessel", summary.Vessel),
			zap.Int("rows", summary.Rows),
			zap.Int("readings", summary.Readings),
			zap.Int("skipped_rows", summary.SkippedRows),
			zap.Int("timestamp_defects", summary.TimestampDefects),
		)
	}

	result.Quality = p.store.Quality()
	result.Duration = time.Since(result.StartedAt)
	metrics.SetStoreReadings(p.store.Len())

	log.Info("ingestion batch finished",
		zap.Int("processed_files", result.ProcessedFiles),
		zap.Int("records", result.Records),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", result.Duration),
	)

	if p.saver != nil {
		if err := p.saver.Save(ctx, p.store); err != nil {
			log.Error("failed to save state", zap.Error(err))
		}
	}
	return result, nil
}

func categorize(err error) string {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return FailureUnsupported
	case errors.As(err, &pathErr):
		return FailureRead
	default:
		return FailureParse
	}
}
