package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// SupportedExtensions lists file types the ingestor accepts when walking directories.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".docx": true,
	".xlsx": true,
}

// Ingestor runs the extract, chunk, embed, index pipeline for documents.
type Ingestor struct {
	extractor *extract.Extractor
	chunker   *Chunker
	embedder  embedding.Embedder
	store     vector.Store
	registry  storage.Registry
	log       *zap.Logger
	batchSize int
	fanout    int
	retry     pipeline.RetryConfig
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(ing *Ingestor) { ing.log = log }
}

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.batchSize = n
		}
	}
}

// WithFanout bounds concurrent embedding batches.
func WithFanout(n int) Option {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.fanout = n
		}
	}
}

// WithRetry sets the retry policy for embedding and index writes.
func WithRetry(cfg pipeline.RetryConfig) Option {
	return func(ing *Ingestor) { ing.retry = cfg }
}

// NewIngestor creates an ingestor.
func NewIngestor(chunker *Chunker, embedder embedding.Embedder, store vector.Store, registry storage.Registry, opts ...Option) *Ingestor {
	ing := &Ingestor{
		extractor: extract.NewExtractor(),
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		registry:  registry,
		log:       zap.NewNop(),
		batchSize: 16,
		fanout:    4,
		retry:     pipeline.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestFile ingests a single file. Unchanged files (same mtime and size as
// the registry row) are skipped; a file whose last ingest failed partway is
// never considered unchanged. Re-ingesting a changed file removes its old
// entries before writing the new ones.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (*models.IngestReport, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, pipeline.Inputf("resolve path %s: %v", path, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, pipeline.Inputf("stat %s: %v", absPath, err)
	}
	if info.IsDir() {
		return nil, pipeline.Inputf("%s is a directory, use IngestDirectory", absPath)
	}

	docID := fileid.FileDocID(absPath)
	mtime := info.ModTime().Unix()
	size := info.Size()

	if existing, err := ing.registry.Get(ctx, docID); err == nil && existing != nil {
		if existing.SourceMtime == mtime && existing.SourceSize == size {
			ing.log.Debug("skipping unchanged file", zap.String("path", absPath))
			return &models.IngestReport{
				DocumentID: docID,
				Pages:      existing.Pages,
				Chunks:     existing.ChunkCount,
				Skipped:    true,
			}, nil
		}
	}

	pages, err := ing.extractor.Extract(absPath)
	if err != nil {
		return nil, pipeline.AtStage("extract", err)
	}

	source := filepath.Base(absPath)
	report, ingestErr := ing.ingest(ctx, docID, source, pages)
	if report == nil {
		return nil, ingestErr
	}

	doc := &models.Document{
		ID:         docID,
		Title:      source,
		SourcePath: absPath,
		Pages:      report.Pages,
		ChunkCount: report.Indexed,
	}
	// Only a complete ingest records mtime and size. A partial one leaves
	// them zero so the next ingest of the same file runs instead of skipping,
	// picking up the chunks that failed.
	if ingestErr == nil {
		doc.SourceMtime = mtime
		doc.SourceSize = size
	}
	regErr := ing.registry.Upsert(ctx, doc)
	if regErr != nil {
		ing.log.Warn("registry update failed", zap.String("doc", docID), zap.Error(regErr))
	}

	ing.log.Info("ingested file",
		zap.String("path", absPath),
		zap.Int("pages", report.Pages),
		zap.Int("chunks", report.Chunks),
		zap.Int("indexed", report.Indexed))
	return report, ingestErr
}

// IngestBytes ingests in-memory content, identified by a content hash. Used by
// the upload API where no source path exists.
func (ing *Ingestor) IngestBytes(ctx context.Context, content []byte, name string) (*models.IngestReport, error) {
	docID := fileid.ContentDocID(content)
	pages, err := ing.extractor.ExtractBytes(content, strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, pipeline.AtStage("extract", err)
	}

	report, ingestErr := ing.ingest(ctx, docID, name, pages)
	if report == nil {
		return nil, ingestErr
	}

	if err := ing.registry.Upsert(ctx, &models.Document{
		ID:         docID,
		Title:      name,
		Pages:      report.Pages,
		ChunkCount: report.Indexed,
	}); err != nil {
		ing.log.Warn("registry update failed", zap.String("doc", docID), zap.Error(err))
	}
	return report, ingestErr
}

// IngestDirectory walks dir and ingests every supported file. Per-file
// failures are logged and joined into the returned error; the walk continues.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string) ([]*models.IngestReport, error) {
	var reports []*models.IngestReport
	var errs []error

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		report, err := ing.IngestFile(ctx, path)
		if err != nil {
			ing.log.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		if report != nil {
			reports = append(reports, report)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return reports, errors.Join(errs...)
}

// DeleteDocument removes a document's index entries and registry row.
func (ing *Ingestor) DeleteDocument(ctx context.Context, docID string) (int, error) {
	removed, err := ing.store.DeleteByDocument(ctx, docID)
	if err != nil {
		return 0, pipeline.AtStage("index", err)
	}
	if err := ing.registry.Delete(ctx, docID); err != nil {
		return removed, err
	}
	return removed, nil
}

// Wipe drops the whole index and clears the registry.
func (ing *Ingestor) Wipe(ctx context.Context) error {
	if err := ing.store.Drop(ctx); err != nil {
		return pipeline.AtStage("index", err)
	}
	return ing.registry.Wipe(ctx)
}

// ingest runs chunk, embed, index for extracted pages. Embedding batches run
// concurrently up to the fanout bound, each with retry for transient failures.
// A configuration failure (wrong embedding dimension) aborts before any index
// write. Partial embedding failures still index what succeeded and report the
// failed chunk ids.
func (ing *Ingestor) ingest(ctx context.Context, docID, source string, pages []extract.Page) (*models.IngestReport, error) {
	chunks := ing.chunker.Chunk(docID, source, pages)
	report := &models.IngestReport{
		DocumentID: docID,
		Pages:      len(pages),
		Chunks:     len(chunks),
	}
	if len(chunks) == 0 {
		ing.log.Debug("document produced no chunks", zap.String("doc", docID))
		return report, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failed   []string
		firstErr error
	)
	sem := make(chan struct{}, ing.fanout)

	for start := 0; start < len(chunks); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			err := pipeline.Retry(ctx, ing.retry, func(ctx context.Context) error {
				vecs, err := ing.embedder.EmbedBatch(ctx, texts)
				if err != nil {
					return err
				}
				for i, c := range batch {
					c.Embedding = vecs[i]
				}
				return nil
			})
			if err != nil {
				mu.Lock()
				for _, c := range batch {
					failed = append(failed, c.ID)
				}
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	var cfgErr *pipeline.ConfigError
	if errors.As(firstErr, &cfgErr) {
		return nil, firstErr
	}
	if len(failed) == len(chunks) {
		return nil, pipeline.AtStage("embed", firstErr)
	}

	entries := make([]vector.Entry, 0, len(chunks))
	for _, c := range chunks {
		if c.Embedding == nil {
			continue
		}
		entries = append(entries, vector.Entry{
			ChunkID: c.ID,
			Vector:  c.Embedding,
			Payload: vector.Payload{
				Text:       c.Text,
				DocumentID: c.DocumentID,
				Source:     c.Source,
				Page:       c.Page,
				Seq:        c.Seq,
				Offset:     c.Offset,
			},
		})
	}

	err := pipeline.Retry(ctx, ing.retry, func(ctx context.Context) error {
		if _, err := ing.store.DeleteByDocument(ctx, docID); err != nil {
			return err
		}
		n, err := ing.store.Upsert(ctx, entries)
		if err != nil {
			return err
		}
		report.Indexed = n
		return nil
	})
	if err != nil {
		return nil, pipeline.AtStage("index", err)
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		report.FailedIDs = failed
		succeeded := make([]string, 0, len(entries))
		for _, e := range entries {
			succeeded = append(succeeded, e.ChunkID)
		}
		return report, &pipeline.PartialIngestError{
			DocumentID: docID,
			Succeeded:  succeeded,
			Failed:     failed,
			Err:        firstErr,
		}
	}
	return report, nil
}
