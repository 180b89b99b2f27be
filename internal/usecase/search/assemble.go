package search

import (
	"github.com/kailas-cloud/competisearch/internal/domain/product"
	"github.com/kailas-cloud/competisearch/internal/domain/route"
	"github.com/kailas-cloud/competisearch/internal/domain/textnorm"
)

// maxRerankCandidates caps how many fused candidates are carried into the
// rerank stage.
const maxRerankCandidates = 100

// candidateItem is one assembled, rerank-ready candidate.
type candidateItem struct {
	Record       product.Record
	RRFScore     float64
	Routes       []route.Detail
	CombinedText string
	// NormFields are the candidate's normalized text fields, kept for the
	// response evidence block.
	NormFields map[string]string
}

// assemble joins fused candidates against the catalog snapshot in score
// order. It skips the query's own product, ids missing from the catalog,
// rows outside the company/channel allow-lists and rows with no usable text,
// stopping at maxRerankCandidates. Deterministic for identical inputs.
func assemble(fused []route.Fused, details map[string][]route.Detail, snap *product.Snapshot, excludeID string, companies, channels []string) []candidateItem {
	allowCompany := allowSet(companies)
	allowChannel := allowSet(channels)

	out := make([]candidateItem, 0, min(len(fused), maxRerankCandidates))
	for _, f := range fused {
		if len(out) >= maxRerankCandidates {
			break
		}
		if excludeID != "" && f.ProductID == excludeID {
			continue
		}
		rec, ok := snap.Row(f.ProductID)
		if !ok {
			// Index and catalog may be transiently inconsistent.
			continue
		}
		if allowCompany != nil && !allowCompany[rec.Company] {
			continue
		}
		if allowChannel != nil && !allowChannel[rec.Channel] {
			continue
		}
		norm := textnorm.NormalizeFields(rec.Fields)
		combined := textnorm.CombinedText(rec.Fields)
		if combined == "" {
			continue
		}
		out = append(out, candidateItem{
			Record:       rec,
			RRFScore:     f.Score,
			Routes:       details[f.ProductID],
			CombinedText: combined,
			NormFields:   norm,
		})
	}
	return out
}

// allowSet returns nil for an empty allow-list, meaning no filtering.
func allowSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
