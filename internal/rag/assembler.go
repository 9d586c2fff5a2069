package rag

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

const blockSeparator = "\n\n"

// AssembledContext is the prompt context built from retrieved passages.
// Passages holds, in order, exactly the passages whose text made it into Text;
// the citation label [S n] refers to Passages[n-1].
type AssembledContext struct {
	Text     string
	Passages []*models.Passage
	Chars    int
}

// Assembler packs retrieved passages into a bounded context string.
type Assembler struct {
	budget int
}

// NewAssembler creates an assembler with a character budget.
func NewAssembler(budget int) *Assembler {
	return &Assembler{budget: budget}
}

// Assemble walks passages in rank order and adds whole blocks until the first
// passage that would exceed the budget; passages are never split to fit. A
// passage whose byte range overlaps an already-included passage of the same
// document is dropped; the higher-ranked copy wins. The result never exceeds
// the budget.
func (a *Assembler) Assemble(passages []*models.Passage) *AssembledContext {
	out := &AssembledContext{}
	var b strings.Builder

	for _, p := range passages {
		if overlapsAny(p, out.Passages) {
			continue
		}
		block := formatBlock(len(out.Passages)+1, p)
		cost := len(block)
		if b.Len() > 0 {
			cost += len(blockSeparator)
		}
		if b.Len()+cost > a.budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString(blockSeparator)
		}
		b.WriteString(block)
		out.Passages = append(out.Passages, p)
	}

	out.Text = b.String()
	out.Chars = b.Len()
	return out
}

func formatBlock(label int, p *models.Passage) string {
	where := p.Source
	if p.Page > 0 {
		where = fmt.Sprintf("%s p.%d", p.Source, p.Page)
	}
	return fmt.Sprintf("[S%d] (%s)\n%s", label, where, p.Text)
}

func overlapsAny(p *models.Passage, kept []*models.Passage) bool {
	for _, k := range kept {
		if k.DocumentID != p.DocumentID {
			continue
		}
		if p.Offset < k.Offset+len(k.Text) && k.Offset < p.Offset+len(p.Text) {
			return true
		}
	}
	return false
}
