// Package e2e exercises the whole pipeline, from files on disk to generated
// answers, against in-memory service fakes.
package e2e

import (
	"fmt"
	"strings"
)

// CorpusDoc is one source file in the test corpus. Each document carries a
// unique signature sentence so a question can assert the right document was
// retrieved.
type CorpusDoc struct {
	Name      string
	Signature string
	Content   string
}

var topics = []struct {
	name      string
	signature string
	filler    string
}{
	{"deploys.txt", "Deployments roll out in three waves separated by ten minute bake times.", "The release process favors small reversible steps over large batches. "},
	{"storage.txt", "Cold data migrates to object storage after thirty days of inactivity.", "Storage tiers trade latency for cost across the fleet. "},
	{"oncall.txt", "The on-call rotation hands off every Monday at nine in the morning.", "Escalation policies route alerts by service ownership. "},
	{"network.md", "Cross-region traffic is encrypted with mutually authenticated sessions.", "The mesh retries idempotent calls with jittered backoff. "},
	{"billing.md", "Invoices are finalized on the second business day of each month.", "Usage records aggregate hourly before rating runs. "},
	{"capacity.txt", "Autoscaling adds nodes when sustained load passes seventy percent.", "Forecasts feed quarterly hardware purchase plans. "},
}

// BuildCorpus returns documents with distinct signature sentences buried in
// topic filler.
func BuildCorpus() []CorpusDoc {
	docs := make([]CorpusDoc, 0, len(topics))
	for _, tp := range topics {
		content := fmt.Sprintf("%s\n\n%s\n\n%s",
			strings.Repeat(tp.filler, 8),
			tp.signature,
			strings.Repeat(tp.filler, 8))
		docs = append(docs, CorpusDoc{
			Name:      tp.name,
			Signature: tp.signature,
			Content:   content,
		})
	}
	return docs
}
