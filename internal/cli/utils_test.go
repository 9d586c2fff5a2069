package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

func sampleResponse() *models.AskResponse {
	return &models.AskResponse{
		Question: "how are snapshots scheduled?",
		Answer:   "Snapshots run every five minutes [S1].",
		Sources: []*models.Passage{
			{ChunkID: "doc:a:0", Source: "ops.pdf", Page: 4, Score: 0.91, Text: "Snapshots are written every five minutes.\nMore detail follows."},
		},
		CitedChunkIDs: []string{"doc:a:0"},
		Rounds:        1,
		QueryTimeMs:   12,
	}
}

func TestWriteAnswer(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteAnswer(&buf, sampleResponse(), OutputText); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"Snapshots run every five minutes [S1].", "[S1] 0.9100  ops.pdf p.4", "1 rounds, 12ms"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "More detail follows") {
			t.Error("source preview should stop at the first line")
		}
	})

	t.Run("json format round-trips", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteAnswer(&buf, sampleResponse(), OutputJSON); err != nil {
			t.Fatal(err)
		}
		var resp models.AskResponse
		if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if resp.Answer != sampleResponse().Answer {
			t.Errorf("Answer = %q", resp.Answer)
		}
	})
}

func TestWriteIngestReports(t *testing.T) {
	var buf bytes.Buffer
	reports := []*models.IngestReport{
		{DocumentID: "doc:a", Pages: 3, Chunks: 5, Indexed: 5},
		{DocumentID: "doc:b", Skipped: true},
		{DocumentID: "doc:c", Chunks: 4, Indexed: 2, FailedIDs: []string{"doc:c:1", "doc:c:3"}},
	}
	if err := WriteIngestReports(&buf, reports, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"indexed   doc:a: 3 pages, 5 chunks",
		"skipped   doc:b (unchanged)",
		"partial   doc:c: 2/4 chunks indexed, 2 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteDocuments(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteDocuments(&buf, nil, OutputText); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "no documents indexed") {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("rows include id and counts", func(t *testing.T) {
		var buf bytes.Buffer
		docs := []*models.Document{
			{ID: "doc:a", Title: "handbook.pdf", Pages: 10, ChunkCount: 42, IngestedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		}
		if err := WriteDocuments(&buf, docs, OutputText); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"doc:a", "handbook.pdf", "pages=10 chunks=42", "2026-03-01 09:30"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})
}
