package routes

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/competisearch/internal/index"
	"github.com/kailas-cloud/competisearch/internal/sparse"
)

type fakeIndex struct {
	queries []index.QueryRequest
	hits    []index.Hit
	err     error
}

func (f *fakeIndex) Query(_ context.Context, req index.QueryRequest) ([]index.Hit, error) {
	f.queries = append(f.queries, req)
	return f.hits, f.err
}

func (f *fakeIndex) Fetch(context.Context, []string) (map[string]index.Doc, error) {
	return nil, nil
}

func (f *fakeIndex) Upsert(context.Context, []index.Doc) error { return nil }
func (f *fakeIndex) Ping(context.Context) error                { return nil }

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return []float32{0.6, 0.8}, f.err
}

type fakeEncoder struct{}

func (fakeEncoder) EncodeQuery(string) sparse.Vector { return sparse.Vector{1: 0.5} }

func newExecutor(idx *fakeIndex, emb *fakeEmbedder) *Executor {
	return NewExecutor(idx, emb, fakeEncoder{}, nil)
}

func TestSearch_EmptyQueryTextSkipsBackend(t *testing.T) {
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	e := newExecutor(idx, emb)

	cands, err := e.Search(context.Background(), Query{Field: "labels", Track: "医疗险", QueryText: "   "})
	if err != nil {
		t.Fatal(err)
	}
	if cands != nil {
		t.Fatalf("expected nil candidates, got %v", cands)
	}
	if emb.calls != 0 || len(idx.queries) != 0 {
		t.Fatal("empty query text must not touch any backend")
	}
}

func TestSearch_BuildsFilterAndDedupes(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		{ID: "P1#labels", Score: 0.9, Fields: map[string]any{"product_id": "P1"}},
		{ID: "P1#labels-dup", Score: 0.8, Fields: map[string]any{"product_id": "P1"}},
		{ID: "P2#labels", Score: 0.7, Fields: map[string]any{}}, // id suffix fallback
		{ID: "", Score: 0.6, Fields: map[string]any{}},          // no derivable id
	}}
	e := newExecutor(idx, &fakeEmbedder{})

	cands, err := e.Search(context.Background(), Query{
		Field:     "labels",
		Track:     "医疗险",
		QueryText: "百万医疗",
		Companies: []string{"平安"},
		Channels:  []string{"线上", "经代"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(cands) != 2 {
		t.Fatalf("expected 2 deduplicated candidates, got %d: %v", len(cands), cands)
	}
	if cands[0].ProductID != "P1" || cands[1].ProductID != "P2" {
		t.Fatalf("got %v", cands)
	}

	wantFilter := "is_meta != 1 and track = '医疗险' and field = 'labels'" +
		" and (company = '平安') and (channel = '线上' or channel = '经代')"
	if got := idx.queries[0].Filter; got != wantFilter {
		t.Fatalf("filter = %q, want %q", got, wantFilter)
	}
	if idx.queries[0].TopK != DefaultTopK {
		t.Errorf("topk = %d, want %d", idx.queries[0].TopK, DefaultTopK)
	}
	if idx.queries[0].IncludeVector {
		t.Error("route queries must not request raw vectors")
	}
}

func TestSearch_MemoizesIdenticalQueries(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{{ID: "P1#labels", Score: 1, Fields: map[string]any{"product_id": "P1"}}}}
	emb := &fakeEmbedder{}
	e := newExecutor(idx, emb)

	q := Query{Field: "labels", Track: "医疗险", QueryText: "重疾"}
	if _, err := e.Search(context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Search(context.Background(), q); err != nil {
		t.Fatal(err)
	}

	if len(idx.queries) != 1 {
		t.Fatalf("expected 1 backend query, got %d", len(idx.queries))
	}
	if emb.calls != 1 {
		t.Fatalf("expected 1 embed call, got %d", emb.calls)
	}
}

func TestSearch_MemoKeyIgnoresAllowListOrder(t *testing.T) {
	q1 := Query{Field: "labels", Track: "t", QueryText: "x", Companies: []string{"b", "a"}}
	q2 := Query{Field: "labels", Track: "t", QueryText: "x", Companies: []string{"a", "b"}}
	if memoKey(q1) != memoKey(q2) {
		t.Error("memo key must sort allow-lists")
	}

	q3 := Query{Field: "features", Track: "t", QueryText: "x", Companies: []string{"a", "b"}}
	if memoKey(q2) == memoKey(q3) {
		t.Error("different fields must have distinct memo keys")
	}
}

func TestSearch_ErrorNotMemoized(t *testing.T) {
	idx := &fakeIndex{err: errors.New("backend down")}
	e := newExecutor(idx, &fakeEmbedder{})

	q := Query{Field: "labels", Track: "t", QueryText: "x"}
	if _, err := e.Search(context.Background(), q); err == nil {
		t.Fatal("expected error")
	}

	idx.err = nil
	idx.hits = []index.Hit{{ID: "P9#labels", Score: 1, Fields: map[string]any{"product_id": "P9"}}}
	cands, err := e.Search(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatal("recovered backend should serve results, error must not be cached")
	}
}

func TestSearch_EmbedFailurePropagates(t *testing.T) {
	idx := &fakeIndex{}
	emb := &fakeEmbedder{err: errors.New("embedding api down")}
	e := newExecutor(idx, emb)

	if _, err := e.Search(context.Background(), Query{Field: "labels", Track: "t", QueryText: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if len(idx.queries) != 0 {
		t.Fatal("index must not be queried when embedding fails")
	}
}
