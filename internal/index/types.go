package index

import "github.com/kailas-cloud/competisearch/internal/sparse"

// Well-known metadata fields of indexed documents.
const (
	FieldProductID   = "product_id"
	FieldCompany     = "company"
	FieldChannel     = "channel"
	FieldProductName = "product_name"
	FieldTrack       = "track"
	FieldField       = "field"
	FieldText        = "text"
	FieldIngestDt    = "ingest_dt"
	FieldBuildID     = "build_id"
	FieldDataVersion = "data_version"
	FieldIsMeta      = "is_meta"
	FieldMetaType    = "meta_type"
)

// MetaDocIDLatest is the id of the freshness-marker document written at the
// end of every successful index build.
const MetaDocIDLatest = "__meta__#latest"

// MetaDocIDBuildPrefix prefixes the per-build history meta documents.
const MetaDocIDBuildPrefix = "__meta__#build_"

// Doc is a document to upsert into the index.
type Doc struct {
	ID           string         `json:"id"`
	Vector       []float32      `json:"vector"`
	SparseVector sparse.Vector  `json:"sparse_vector,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Hit is one scored match returned by a query, with a fixed schema: the
// adapter boundary is typed, callers never probe for score attributes.
type Hit struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// StringField returns the named metadata field as a trimmed string, or ""
// when absent.
func (h Hit) StringField(name string) string {
	return anyToString(h.Fields[name])
}

// QueryRequest is one hybrid (dense+sparse) query against the index.
type QueryRequest struct {
	Vector        []float32     `json:"vector"`
	SparseVector  sparse.Vector `json:"sparse_vector,omitempty"`
	TopK          int           `json:"topk"`
	Filter        string        `json:"filter,omitempty"`
	OutputFields  []string      `json:"output_fields,omitempty"`
	IncludeVector bool          `json:"include_vector"`
}
