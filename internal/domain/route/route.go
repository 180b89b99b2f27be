// Package route holds the per-route retrieval types: raw candidates, tagged
// route outcomes, and fused candidates with provenance.
package route

// Candidate is one (product id, raw score) pair returned by a single route.
type Candidate struct {
	ProductID string
	Score     float64
}

// Detail records one route's contribution to a fused product.
type Detail struct {
	Route    string  `json:"route"`
	Rank     int     `json:"rank"`
	ScoreRaw float64 `json:"score_raw"`
}

// Outcome is the tagged result of one route search: either candidates or a
// failure reason. Failed routes contribute nothing to fusion but the reason
// is kept for observability.
type Outcome struct {
	Route      string
	Candidates []Candidate
	Err        error
}

// OK reports whether the route completed without error.
func (o Outcome) OK() bool { return o.Err == nil }

// Fused is one product after rank fusion: the aggregate RRF score plus the
// per-route contributions in accumulation order.
type Fused struct {
	ProductID string
	Score     float64
}
