package ingest

import (
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/extract"
)

func onePage(text string) []extract.Page {
	return []extract.Page{{Number: 1, Text: text}}
}

func TestChunker(t *testing.T) {
	t.Run("short text yields one chunk", func(t *testing.T) {
		c := NewChunker(100, 10)
		chunks := c.Chunk("doc:1", "a.txt", onePage("hello world"))
		if len(chunks) != 1 {
			t.Fatalf("got %d chunks", len(chunks))
		}
		if chunks[0].Text != "hello world" {
			t.Errorf("Text = %q", chunks[0].Text)
		}
		if chunks[0].ID != "doc:1:0" {
			t.Errorf("ID = %q", chunks[0].ID)
		}
		if chunks[0].Offset != 0 || chunks[0].Seq != 0 || chunks[0].Page != 1 {
			t.Errorf("metadata wrong: %+v", chunks[0])
		}
	})

	t.Run("empty and whitespace yield no chunks", func(t *testing.T) {
		c := NewChunker(100, 10)
		if got := c.Chunk("doc:1", "a.txt", nil); got != nil {
			t.Errorf("nil pages: got %d chunks", len(got))
		}
		if got := c.Chunk("doc:1", "a.txt", onePage("   \n\t  ")); got != nil {
			t.Errorf("whitespace: got %d chunks", len(got))
		}
	})

	t.Run("hard cuts overlap exactly", func(t *testing.T) {
		// No boundaries anywhere, so every cut is a hard cut.
		text := strings.Repeat("x", 950)
		c := NewChunker(200, 30)
		chunks := c.Chunk("doc:1", "a.txt", onePage(text))
		if len(chunks) < 2 {
			t.Fatalf("got %d chunks", len(chunks))
		}
		for i := 1; i < len(chunks); i++ {
			prev, cur := chunks[i-1], chunks[i]
			if got := prev.End() - cur.Offset; got != 30 && i != len(chunks)-1 {
				t.Errorf("chunk %d overlap = %d, want 30", i, got)
			}
			if cur.Offset != prev.End()-30 {
				t.Errorf("chunk %d starts at %d, want %d", i, cur.Offset, prev.End()-30)
			}
		}
		for i, ch := range chunks[:len(chunks)-1] {
			if len(ch.Text) != 200 {
				t.Errorf("chunk %d length = %d, want 200", i, len(ch.Text))
			}
		}
	})

	t.Run("reconstruction", func(t *testing.T) {
		texts := []string{
			strings.Repeat("abcdefghij", 137),
			"First sentence here. " + strings.Repeat("More words follow now. ", 60) + "The end.",
			"para one\n\n" + strings.Repeat("body text ", 80) + "\n\npara three " + strings.Repeat("z", 300),
		}
		c := NewChunker(250, 40)
		for _, text := range texts {
			chunks := c.Chunk("doc:1", "a.txt", onePage(text))
			if len(chunks) == 0 {
				t.Fatal("no chunks")
			}
			var b strings.Builder
			b.WriteString(chunks[0].Text)
			for i := 1; i < len(chunks); i++ {
				overlap := chunks[i-1].End() - chunks[i].Offset
				if overlap < 0 {
					t.Fatalf("gap between chunk %d and %d", i-1, i)
				}
				b.WriteString(chunks[i].Text[overlap:])
			}
			if b.String() != text {
				t.Errorf("reconstruction mismatch: %d chunks, got %d bytes want %d",
					len(chunks), b.Len(), len(text))
			}
		}
	})

	t.Run("prefers paragraph boundary", func(t *testing.T) {
		text := strings.Repeat("a", 180) + "\n\n" + strings.Repeat("b", 300)
		c := NewChunker(200, 20)
		chunks := c.Chunk("doc:1", "a.txt", onePage(text))
		if len(chunks) < 2 {
			t.Fatalf("got %d chunks", len(chunks))
		}
		if !strings.HasSuffix(chunks[0].Text, "\n\n") {
			t.Errorf("first chunk does not end at paragraph break: %q", chunks[0].Text[len(chunks[0].Text)-10:])
		}
	})

	t.Run("prefers sentence boundary", func(t *testing.T) {
		text := strings.Repeat("a", 170) + ". " + strings.Repeat("b", 300)
		c := NewChunker(200, 20)
		chunks := c.Chunk("doc:1", "a.txt", onePage(text))
		if len(chunks) < 2 {
			t.Fatalf("got %d chunks", len(chunks))
		}
		if !strings.HasSuffix(chunks[0].Text, ". ") {
			t.Errorf("first chunk does not end at sentence: %q", chunks[0].Text[len(chunks[0].Text)-10:])
		}
	})

	t.Run("page assignment follows chunk start", func(t *testing.T) {
		pages := []extract.Page{
			{Number: 1, Text: strings.Repeat("p1 text ", 30)},
			{Number: 2, Text: strings.Repeat("p2 text ", 30)},
			{Number: 3, Text: strings.Repeat("p3 text ", 30)},
		}
		c := NewChunker(200, 20)
		chunks := c.Chunk("doc:1", "a.pdf", pages)
		if len(chunks) < 3 {
			t.Fatalf("got %d chunks", len(chunks))
		}
		if chunks[0].Page != 1 {
			t.Errorf("first chunk page = %d", chunks[0].Page)
		}
		if last := chunks[len(chunks)-1]; last.Page != 3 {
			t.Errorf("last chunk page = %d", last.Page)
		}
		for i := 1; i < len(chunks); i++ {
			if chunks[i].Page < chunks[i-1].Page {
				t.Errorf("page numbers regress at chunk %d", i)
			}
		}
	})

	t.Run("ids are deterministic", func(t *testing.T) {
		c := NewChunker(100, 10)
		text := strings.Repeat("repeatable content here. ", 20)
		a := c.Chunk("doc:1", "a.txt", onePage(text))
		b := c.Chunk("doc:1", "a.txt", onePage(text))
		if len(a) != len(b) {
			t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i].ID != b[i].ID || a[i].Text != b[i].Text || a[i].Offset != b[i].Offset {
				t.Errorf("chunk %d differs between runs", i)
			}
		}
	})

	t.Run("utf8 never split", func(t *testing.T) {
		text := strings.Repeat("héllo wörld çafé ", 100)
		c := NewChunker(150, 25)
		chunks := c.Chunk("doc:1", "a.txt", onePage(text))
		for i, ch := range chunks {
			if !strings.Contains(text, ch.Text) {
				t.Fatalf("chunk %d is not a substring of input", i)
			}
			for _, r := range ch.Text {
				if r == '�' {
					t.Fatalf("chunk %d contains replacement rune", i)
				}
			}
		}
	})
}
