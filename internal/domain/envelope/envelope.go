// Package envelope defines the client-visible response wrapper shared by the
// search and index endpoints.
package envelope

import "encoding/json"

// Status values of an envelope.
const (
	StatusSuccess = "SUCCESS"
	StatusFail    = "FAIL"
)

// Content is the primary payload of a search response.
type Content struct {
	ProductList []string `json:"product_list"`
	BizDt       string   `json:"biz_dt"`
	Warnings    []string `json:"warnings"`
}

// Envelope is the full response of the competitor search operation.
// Detail carries the echo of the resolved query and the scored candidates;
// it is kept as raw JSON-compatible structures so cached envelopes serialize
// byte-identically.
type Envelope struct {
	Status    string          `json:"status"`
	FailCause string          `json:"failCause"`
	Content   Content         `json:"content"`
	Detail    json.RawMessage `json:"detail"`
}

// Success wraps a successful result.
func Success(detail json.RawMessage, bizDt string, productList []string, warnings []string) Envelope {
	if productList == nil {
		productList = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return Envelope{
		Status:    StatusSuccess,
		FailCause: "",
		Content: Content{
			ProductList: productList,
			BizDt:       bizDt,
			Warnings:    warnings,
		},
		Detail: detail,
	}
}

// Fail wraps a failed result. An empty cause is replaced by a generic marker
// so callers can always rely on failCause being non-empty on FAIL.
func Fail(detail json.RawMessage, bizDt, failCause string) Envelope {
	if failCause == "" {
		failCause = "unknown_error"
	}
	return Envelope{
		Status:    StatusFail,
		FailCause: failCause,
		Content: Content{
			ProductList: []string{},
			BizDt:       bizDt,
			Warnings:    []string{},
		},
		Detail: detail,
	}
}
