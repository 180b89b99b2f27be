// Package product defines the catalog record and the fixed text-field set
// every product carries.
package product

// TextFields is the fixed, ordered set of text fields a product is indexed on.
// Each field becomes one retrieval route and one index document per product.
var TextFields = []string{
	"labels",
	"features",
	"summary_coverage",
	"summary_liability",
	"summary_exclusions",
	"summary_provisions",
	"summary_services",
}

// Record is one product row from the catalog. Immutable snapshot per index
// build; read-only to the search core.
type Record struct {
	ProductID   string
	Company     string
	Channel     string
	ProductName string
	Track       string
	Fields      map[string]string // keyed by TextFields entries, raw values
}

// Snapshot is a point-in-time view of the whole catalog keyed by product id.
// A snapshot is never mutated after construction; a fresh one may be swapped
// in for the next request without affecting an in-flight one.
type Snapshot struct {
	records map[string]Record
}

// NewSnapshot builds a snapshot from catalog rows. Rows without a product id
// are dropped; on duplicate ids the last row wins.
func NewSnapshot(rows []Record) *Snapshot {
	m := make(map[string]Record, len(rows))
	for _, r := range rows {
		if r.ProductID == "" {
			continue
		}
		m[r.ProductID] = r
	}
	return &Snapshot{records: m}
}

// Row returns the record for the given product id.
func (s *Snapshot) Row(productID string) (Record, bool) {
	r, ok := s.records[productID]
	return r, ok
}

// Len returns the number of products in the snapshot.
func (s *Snapshot) Len() int { return len(s.records) }

// All returns the records in unspecified order.
func (s *Snapshot) All() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}
