package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/competisearch/internal/domain"
)

func validParams() Params {
	return Params{
		ProductName:  "乐享医疗2025",
		ProductTrack: "医疗险",
		ProductInfo:  "百万医疗 质子重离子",
	}
}

func TestNew_Defaults(t *testing.T) {
	q, err := New(validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.RerankThreshold != DefaultRerankThreshold {
		t.Errorf("threshold = %g, want %g", q.RerankThreshold, DefaultRerankThreshold)
	}
	if q.MaxResults != DefaultMaxResults {
		t.Errorf("max_results = %d, want %d", q.MaxResults, DefaultMaxResults)
	}
}

func TestNew_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"product_name", func(p *Params) { p.ProductName = "" }},
		{"product_track", func(p *Params) { p.ProductTrack = "   " }},
		{"product_info", func(p *Params) { p.ProductInfo = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := New(p)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.name) {
				t.Errorf("error %q should name the missing field %q", err, tt.name)
			}
		})
	}
}

func TestNew_ThresholdBounds(t *testing.T) {
	for _, bad := range []float64{-0.1, 1.01} {
		p := validParams()
		p.RerankThreshold = &bad
		if _, err := New(p); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("threshold %g: expected ErrValidation, got %v", bad, err)
		}
	}
	ok := 0.0
	p := validParams()
	p.RerankThreshold = &ok
	if _, err := New(p); err != nil {
		t.Errorf("threshold 0 should be valid: %v", err)
	}
}

func TestNew_MaxResultsBounds(t *testing.T) {
	for _, bad := range []int{0, -5, 101} {
		p := validParams()
		p.MaxResults = &bad
		if _, err := New(p); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("max_results %d: expected ErrValidation, got %v", bad, err)
		}
	}
}

func TestNew_NormalizesFilterLists(t *testing.T) {
	p := validParams()
	p.SelectedCompany = []string{" 平安 ", "", "太保"}
	q, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(q.SelectedCompany) != 2 || q.SelectedCompany[0] != "平安" || q.SelectedCompany[1] != "太保" {
		t.Fatalf("got %v", q.SelectedCompany)
	}
}

func TestCacheKey_StableUnderFilterOrder(t *testing.T) {
	p1 := validParams()
	p1.SelectedCompany = []string{"b", "a"}
	p2 := validParams()
	p2.SelectedCompany = []string{"a", "b"}

	q1, _ := New(p1)
	q2, _ := New(p2)

	if q1.CacheKey("2026-01-01 00:00:00") != q2.CacheKey("2026-01-01 00:00:00") {
		t.Error("cache key should be independent of allow-list order")
	}
}

func TestCacheKey_VariesWithBizDt(t *testing.T) {
	q, _ := New(validParams())
	if q.CacheKey("2026-01-01 00:00:00") == q.CacheKey("2026-01-02 00:00:00") {
		t.Error("cache key must include the freshness marker")
	}
}
