package search

import (
	"encoding/json"

	"github.com/kailas-cloud/competisearch/internal/domain/query"
	"github.com/kailas-cloud/competisearch/internal/domain/route"
)

// ResultItem is one final scored competitor in the response detail.
type ResultItem struct {
	ProductID    string         `json:"product_id"`
	Company      string         `json:"company"`
	Channel      string         `json:"channel"`
	ProductName  string         `json:"product_name"`
	ProductTrack string         `json:"product_track"`
	RerankScore  float64        `json:"rerank_score"`
	RRFScore     float64        `json:"rrf_score"`
	Routes       []route.Detail `json:"routes"`
	Evidence     Evidence       `json:"evidence"`
}

// Evidence is the candidate text the rerank score was computed against.
type Evidence struct {
	CombinedText string            `json:"combined_text"`
	Fields       map[string]string `json:"fields"`
}

// queryDetail echoes the resolved query back to the caller.
type queryDetail struct {
	ProductID       string            `json:"product_id"`
	ProductName     string            `json:"product_name"`
	ProductTrack    string            `json:"product_track"`
	ProductInfo     string            `json:"product_info"`
	SelectedCompany []string          `json:"selected_company"`
	SelectedChannel []string          `json:"selected_channel"`
	RerankThreshold float64           `json:"rerank_threshold"`
	MaxResults      int               `json:"max_results"`
	EffectivePid    string            `json:"effective_pid"`
	ParsedFields    map[string]string `json:"parsed_fields"`
	RerankQueryText string            `json:"rerank_query_text"`
}

type detailPayload struct {
	Query      queryDetail  `json:"query"`
	Candidates []ResultItem `json:"candidates"`
}

// failPayload is the detail of a FAIL envelope: the raw request echo plus
// the error that stopped the pipeline.
type failPayload struct {
	QueryRaw   any          `json:"query_raw"`
	Candidates []ResultItem `json:"candidates"`
	Error      string       `json:"error"`
}

func queryEcho(q query.Query, effectiveID string, parsedFields map[string]string, rerankQueryText string) queryDetail {
	return queryDetail{
		ProductID:       q.ProductID,
		ProductName:     q.ProductName,
		ProductTrack:    q.ProductTrack,
		ProductInfo:     q.ProductInfo,
		SelectedCompany: emptyIfNil(q.SelectedCompany),
		SelectedChannel: emptyIfNil(q.SelectedChannel),
		RerankThreshold: q.RerankThreshold,
		MaxResults:      q.MaxResults,
		EffectivePid:    effectiveID,
		ParsedFields:    parsedFields,
		RerankQueryText: rerankQueryText,
	}
}

func marshalDetail(echo queryDetail, candidates []ResultItem) json.RawMessage {
	if candidates == nil {
		candidates = []ResultItem{}
	}
	raw, err := json.Marshal(detailPayload{Query: echo, Candidates: candidates})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func failDetail(p query.Params, errMsg string) json.RawMessage {
	echo := map[string]any{
		"product_id":       p.ProductID,
		"product_name":     p.ProductName,
		"product_track":    p.ProductTrack,
		"product_info":     p.ProductInfo,
		"selected_company": emptyIfNil(p.SelectedCompany),
		"selected_channel": emptyIfNil(p.SelectedChannel),
	}
	raw, err := json.Marshal(failPayload{QueryRaw: echo, Candidates: []ResultItem{}, Error: errMsg})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func failDetailQuery(q query.Query, errMsg string) json.RawMessage {
	echo := map[string]any{
		"product_id":       q.ProductID,
		"product_name":     q.ProductName,
		"product_track":    q.ProductTrack,
		"product_info":     q.ProductInfo,
		"selected_company": emptyIfNil(q.SelectedCompany),
		"selected_channel": emptyIfNil(q.SelectedChannel),
		"rerank_threshold": q.RerankThreshold,
		"max_results":      q.MaxResults,
	}
	raw, err := json.Marshal(failPayload{QueryRaw: echo, Candidates: []ResultItem{}, Error: errMsg})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
