// Package integration tests the ingest and ask pipeline against real SQLite
// storage on disk.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

func TestIngestAskDeleteCycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	emb := embedding.NewMockEmbedder(16)
	store, err := vector.NewMemoryStore(16)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := storage.NewSQLiteRegistry(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ingestor := ingest.NewIngestor(ingest.NewChunker(300, 40), emb, store, reg)
	retriever := rag.NewRetriever(emb, store, zap.NewNop())
	engine := rag.NewEngine(retriever, generate.NewMockGenerator(nil), rag.Config{
		TopK:          3,
		ContextBudget: 4000,
		MaxRounds:     1,
	})

	notes := "The incident review happens within two working days of resolution."
	path := filepath.Join(dir, "incidents.txt")
	if err := os.WriteFile(path, []byte(notes), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := ingestor.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Indexed != 1 {
		t.Fatalf("report = %+v", report)
	}

	// Registry and index agree on what exists.
	doc, err := reg.Get(ctx, report.DocumentID)
	if err != nil || doc == nil {
		t.Fatalf("registry row: %v", err)
	}
	if doc.SourcePath != path {
		t.Errorf("SourcePath = %q", doc.SourcePath)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("store count = %d", n)
	}

	resp, err := engine.Ask(ctx, &models.AskRequest{Question: notes})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Text != notes {
		t.Fatalf("sources = %+v", resp.Sources)
	}

	// The document id is reproducible from the path alone.
	if fileid.FileDocID(path) != report.DocumentID {
		t.Errorf("doc id mismatch: %s vs %s", fileid.FileDocID(path), report.DocumentID)
	}

	removed, err := ingestor.DeleteDocument(ctx, report.DocumentID)
	if err != nil || removed != 1 {
		t.Fatalf("delete: removed=%d err=%v", removed, err)
	}

	resp, err = engine.Ask(ctx, &models.AskRequest{Question: notes})
	if err != nil {
		t.Fatalf("ask after delete: %v", err)
	}
	if resp.Answer != rag.NoAnswerText {
		t.Errorf("deleted document still answered: %q", resp.Answer)
	}
}

func TestRegistrySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "registry.db")

	reg, err := storage.NewSQLiteRegistry(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Upsert(ctx, &models.Document{ID: "doc:persist", Title: "kept.txt", ChunkCount: 7}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := storage.NewSQLiteRegistry(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	doc, err := reopened.Get(ctx, "doc:persist")
	if err != nil || doc == nil {
		t.Fatalf("Get after reopen: doc=%v err=%v", doc, err)
	}
	if doc.Title != "kept.txt" || doc.ChunkCount != 7 {
		t.Errorf("row = %+v", doc)
	}
}

func TestOversizeChunksNeverProduced(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	emb := embedding.NewMockEmbedder(16)
	store, err := vector.NewMemoryStore(16)
	if err != nil {
		t.Fatal(err)
	}
	reg, err := storage.NewSQLiteRegistry(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	const chunkSize = 250
	ingestor := ingest.NewIngestor(ingest.NewChunker(chunkSize, 30), emb, store, reg)

	long := strings.Repeat("Mixed content with sentences. Some are short. Others ramble on for a while before stopping. ", 40)
	path := filepath.Join(dir, "long.txt")
	if err := os.WriteFile(path, []byte(long), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ingestor.IngestFile(ctx, path); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	sample, err := store.Sample(ctx, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if len(sample) == 0 {
		t.Fatal("nothing indexed")
	}
	for _, s := range sample {
		if len(s.Payload.Text) > chunkSize {
			t.Errorf("chunk %s has %d bytes, limit %d", s.ChunkID, len(s.Payload.Text), chunkSize)
		}
	}
}
