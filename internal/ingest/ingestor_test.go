package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// flakyEmbedder fails the first failCount EmbedBatch calls, then delegates.
type flakyEmbedder struct {
	embedding.Embedder
	mu        sync.Mutex
	failCount int
	failWith  error
	calls     int
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failCount > 0
	if fail {
		f.failCount--
	}
	f.mu.Unlock()
	if fail {
		return nil, f.failWith
	}
	return f.Embedder.EmbedBatch(ctx, texts)
}

func newTestIngestor(t *testing.T, emb embedding.Embedder, opts ...Option) (*Ingestor, *vector.MemoryStore, storage.Registry) {
	t.Helper()
	store, err := vector.NewMemoryStore(emb.Dimensions())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	reg, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	base := []Option{
		WithRetry(pipeline.RetryConfig{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 1}),
	}
	ing := NewIngestor(NewChunker(200, 30), emb, store, reg, append(base, opts...)...)
	return ing, store, reg
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestIngestFile(t *testing.T) {
	ctx := context.Background()
	longText := strings.Repeat("Ingestion pipelines turn documents into vectors. ", 20)

	t.Run("indexes all chunks", func(t *testing.T) {
		ing, store, reg := newTestIngestor(t, embedding.NewMockEmbedder(32))
		path := writeFixture(t, t.TempDir(), "notes.txt", longText)

		report, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatalf("IngestFile: %v", err)
		}
		if report.Chunks == 0 || report.Indexed != report.Chunks {
			t.Errorf("report = %+v", report)
		}
		n, _ := store.Count(ctx)
		if n != report.Indexed {
			t.Errorf("store has %d entries, report says %d", n, report.Indexed)
		}
		doc, err := reg.Get(ctx, report.DocumentID)
		if err != nil || doc == nil {
			t.Fatalf("registry row missing: %v", err)
		}
		if doc.ChunkCount != report.Indexed || doc.Title != "notes.txt" {
			t.Errorf("registry row = %+v", doc)
		}
	})

	t.Run("unchanged file is skipped", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, embedding.NewMockEmbedder(32))
		path := writeFixture(t, t.TempDir(), "notes.txt", longText)

		first, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		second, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if !second.Skipped {
			t.Error("expected second ingest to be skipped")
		}
		if second.Chunks != first.Indexed {
			t.Errorf("skipped report chunks = %d, want %d", second.Chunks, first.Indexed)
		}
	})

	t.Run("changed file is re-ingested without leftovers", func(t *testing.T) {
		ing, store, _ := newTestIngestor(t, embedding.NewMockEmbedder(32))
		dir := t.TempDir()
		path := writeFixture(t, dir, "notes.txt", longText)

		if _, err := ing.IngestFile(ctx, path); err != nil {
			t.Fatal(err)
		}
		// Shorter content produces fewer chunks; stale entries must go.
		writeFixture(t, dir, "notes.txt", "Just one small paragraph now.")
		report, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if report.Skipped {
			t.Fatal("changed file must not be skipped")
		}
		n, _ := store.Count(ctx)
		if n != report.Indexed {
			t.Errorf("store has %d entries after re-ingest, want %d", n, report.Indexed)
		}
	})

	t.Run("empty file yields empty report", func(t *testing.T) {
		ing, store, _ := newTestIngestor(t, embedding.NewMockEmbedder(32))
		path := writeFixture(t, t.TempDir(), "empty.txt", "   \n  ")

		report, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatalf("IngestFile: %v", err)
		}
		if report.Chunks != 0 || report.Indexed != 0 {
			t.Errorf("report = %+v", report)
		}
		n, _ := store.Count(ctx)
		if n != 0 {
			t.Errorf("store has %d entries", n)
		}
	})

	t.Run("missing file is an input error", func(t *testing.T) {
		ing, _, _ := newTestIngestor(t, embedding.NewMockEmbedder(32))
		_, err := ing.IngestFile(ctx, filepath.Join(t.TempDir(), "nope.txt"))
		var inputErr *pipeline.InputError
		if !errors.As(err, &inputErr) {
			t.Errorf("expected InputError, got %v", err)
		}
	})

	t.Run("transient embedding failure is retried", func(t *testing.T) {
		emb := &flakyEmbedder{
			Embedder:  embedding.NewMockEmbedder(32),
			failCount: 1,
			failWith:  pipeline.Transientf("connection reset"),
		}
		ing, store, _ := newTestIngestor(t, emb, WithFanout(1))
		path := writeFixture(t, t.TempDir(), "notes.txt", longText)

		report, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatalf("IngestFile after retry: %v", err)
		}
		if report.Indexed != report.Chunks {
			t.Errorf("report = %+v", report)
		}
		n, _ := store.Count(ctx)
		if n != report.Indexed {
			t.Errorf("store has %d entries", n)
		}
	})

	t.Run("dimension mismatch aborts before index write", func(t *testing.T) {
		emb := &flakyEmbedder{
			Embedder:  embedding.NewMockEmbedder(32),
			failCount: 1 << 30,
			failWith:  pipeline.Configf("embedding dimension mismatch: got 768, want 32"),
		}
		ing, store, reg := newTestIngestor(t, emb)
		path := writeFixture(t, t.TempDir(), "notes.txt", longText)

		_, err := ing.IngestFile(ctx, path)
		var cfgErr *pipeline.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		n, _ := store.Count(ctx)
		if n != 0 {
			t.Errorf("index written despite config error: %d entries", n)
		}
		doc, _ := reg.Get(ctx, "whatever")
		if doc != nil {
			t.Error("registry row written despite config error")
		}
	})

	t.Run("partial embedding failure indexes the rest", func(t *testing.T) {
		emb := &flakyEmbedder{
			Embedder:  embedding.NewMockEmbedder(32),
			failCount: 1,
			failWith:  pipeline.Inputf("batch rejected"),
		}
		ing, store, _ := newTestIngestor(t, emb, WithBatchSize(2), WithFanout(1))
		path := writeFixture(t, t.TempDir(), "notes.txt", longText)

		report, err := ing.IngestFile(ctx, path)
		var partial *pipeline.PartialIngestError
		if !errors.As(err, &partial) {
			t.Fatalf("expected PartialIngestError, got %v", err)
		}
		if report == nil {
			t.Fatal("report missing on partial failure")
		}
		if len(report.FailedIDs) != 2 {
			t.Errorf("FailedIDs = %v", report.FailedIDs)
		}
		if report.Indexed != report.Chunks-2 {
			t.Errorf("Indexed = %d, Chunks = %d", report.Indexed, report.Chunks)
		}
		n, _ := store.Count(ctx)
		if n != report.Indexed {
			t.Errorf("store has %d entries", n)
		}
	})

	t.Run("partial failure is recovered by the next ingest", func(t *testing.T) {
		emb := &flakyEmbedder{
			Embedder:  embedding.NewMockEmbedder(32),
			failCount: 1,
			failWith:  pipeline.Inputf("batch rejected"),
		}
		ing, store, reg := newTestIngestor(t, emb, WithBatchSize(2), WithFanout(1))
		path := writeFixture(t, t.TempDir(), "notes.txt", longText)

		first, err := ing.IngestFile(ctx, path)
		var partial *pipeline.PartialIngestError
		if !errors.As(err, &partial) {
			t.Fatalf("expected PartialIngestError, got %v", err)
		}

		// The file is unchanged on disk, but its failed chunks are missing
		// from the index, so it must not be treated as up to date.
		second, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatalf("re-ingest after partial failure: %v", err)
		}
		if second.Skipped {
			t.Fatal("partially ingested file was skipped on retry")
		}
		if second.Indexed != second.Chunks {
			t.Errorf("retry report = %+v", second)
		}
		if second.Indexed <= first.Indexed {
			t.Errorf("retry indexed %d chunks, first pass indexed %d", second.Indexed, first.Indexed)
		}
		n, _ := store.Count(ctx)
		if n != second.Chunks {
			t.Errorf("store has %d entries, want %d", n, second.Chunks)
		}
		doc, _ := reg.Get(ctx, second.DocumentID)
		if doc == nil || doc.ChunkCount != second.Indexed {
			t.Errorf("registry row = %+v", doc)
		}

		// Once fully ingested, the unchanged file skips again.
		third, err := ing.IngestFile(ctx, path)
		if err != nil {
			t.Fatal(err)
		}
		if !third.Skipped {
			t.Error("fully ingested file should skip")
		}
	})
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	ing, store, reg := newTestIngestor(t, embedding.NewMockEmbedder(32))

	dir := t.TempDir()
	writeFixture(t, dir, "a.txt", strings.Repeat("Document a talks about storage engines. ", 10))
	writeFixture(t, dir, "b.md", strings.Repeat("Document b covers network protocols. ", 10))
	writeFixture(t, dir, "ignored.bin", "binary payload")
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	writeFixture(t, sub, "c.txt", strings.Repeat("Document c describes scheduling. ", 10))

	reports, err := ing.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	count, _ := reg.Count(ctx)
	if count != 3 {
		t.Errorf("registry has %d docs", count)
	}
	n, _ := store.Count(ctx)
	total := 0
	for _, r := range reports {
		total += r.Indexed
	}
	if n != total {
		t.Errorf("store has %d entries, reports total %d", n, total)
	}
}

func TestDeleteAndWipe(t *testing.T) {
	ctx := context.Background()
	ing, store, reg := newTestIngestor(t, embedding.NewMockEmbedder(32))

	dir := t.TempDir()
	pathA := writeFixture(t, dir, "a.txt", strings.Repeat("alpha content here. ", 15))
	writeFixture(t, dir, "b.txt", strings.Repeat("beta content here. ", 15))

	reports, err := ing.IngestDirectory(ctx, dir)
	if err != nil || len(reports) != 2 {
		t.Fatalf("setup: %v, %d reports", err, len(reports))
	}

	reportA, err := ing.IngestFile(ctx, pathA)
	if err != nil {
		t.Fatal(err)
	}

	removed, err := ing.DeleteDocument(ctx, reportA.DocumentID)
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if removed != reportA.Chunks {
		t.Errorf("removed %d, want %d", removed, reportA.Chunks)
	}
	if doc, _ := reg.Get(ctx, reportA.DocumentID); doc != nil {
		t.Error("registry row survived delete")
	}

	if err := ing.Wipe(ctx); err != nil {
		t.Fatalf("Wipe: %v", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("store has %d entries after wipe", n)
	}
	if c, _ := reg.Count(ctx); c != 0 {
		t.Errorf("registry has %d docs after wipe", c)
	}
}
