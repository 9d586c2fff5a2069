// Package cli formats command output for kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat selects how answers are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes an ask response to w in the given format.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	default:
		writeAnswerText(w, resp)
		return nil
	}
}

func writeAnswerText(w io.Writer, resp *models.AskResponse) {
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%d passages, %d rounds, %dms):\n",
			len(resp.Sources), resp.Rounds, resp.QueryTimeMs)
		for i, p := range resp.Sources {
			where := p.Source
			if p.Page > 0 {
				where = fmt.Sprintf("%s p.%d", p.Source, p.Page)
			}
			fmt.Fprintf(w, "  [S%d] %.4f  %s\n", i+1, p.Score, where)
			fmt.Fprintf(w, "        %s\n", utils.Truncate(utils.FirstLine(p.Text), 120))
		}
	}
	fmt.Fprintln(w)
}

// WriteIngestReports writes one line per ingested document.
func WriteIngestReports(w io.Writer, reports []*models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "skipped   %s (unchanged)\n", r.DocumentID)
		case len(r.FailedIDs) > 0:
			fmt.Fprintf(w, "partial   %s: %d/%d chunks indexed, %d failed\n",
				r.DocumentID, r.Indexed, r.Chunks, len(r.FailedIDs))
		default:
			fmt.Fprintf(w, "indexed   %s: %d pages, %d chunks\n", r.DocumentID, r.Pages, r.Indexed)
		}
	}
	return nil
}

// WriteDocuments lists registry rows.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "no documents indexed")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %-30s  pages=%d chunks=%d  %s\n",
			d.ID, utils.Truncate(d.Title, 30), d.Pages, d.ChunkCount,
			d.IngestedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
