package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/competisearch/internal/index"
)

type fakeIndex struct {
	fetches int
	docs    map[string]index.Doc
	err     error
}

func (f *fakeIndex) Fetch(context.Context, []string) (map[string]index.Doc, error) {
	f.fetches++
	return f.docs, f.err
}

func (f *fakeIndex) Query(context.Context, index.QueryRequest) ([]index.Hit, error) {
	return nil, nil
}

func (f *fakeIndex) Upsert(context.Context, []index.Doc) error { return nil }
func (f *fakeIndex) Ping(context.Context) error                { return nil }

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
}

func TestResolve_ReadsIngestDt(t *testing.T) {
	idx := &fakeIndex{docs: map[string]index.Doc{
		index.MetaDocIDLatest: {
			ID:     index.MetaDocIDLatest,
			Fields: map[string]any{"ingest_dt": "2026-08-27 03:00:00"},
		},
	}}
	r := New(idx, WithClock(fixedClock()))

	m := r.Resolve(context.Background())
	if m.BizDt != "2026-08-27 03:00:00" {
		t.Fatalf("biz_dt = %q", m.BizDt)
	}
	if len(m.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", m.Warnings)
	}
}

func TestResolve_FetchErrorFallsBackToClock(t *testing.T) {
	idx := &fakeIndex{err: errors.New("index unreachable")}
	r := New(idx, WithClock(fixedClock()))

	m := r.Resolve(context.Background())
	if m.BizDt != "2026-08-28 12:00:00" {
		t.Fatalf("biz_dt = %q", m.BizDt)
	}
	if len(m.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", m.Warnings)
	}
}

func TestResolve_MissingDocWarns(t *testing.T) {
	idx := &fakeIndex{docs: map[string]index.Doc{}}
	r := New(idx, WithClock(fixedClock()))

	m := r.Resolve(context.Background())
	if len(m.Warnings) != 1 || m.Warnings[0] != "meta_doc_not_found" {
		t.Fatalf("warnings = %v", m.Warnings)
	}
}

func TestResolve_MissingIngestDtWarns(t *testing.T) {
	idx := &fakeIndex{docs: map[string]index.Doc{
		index.MetaDocIDLatest: {ID: index.MetaDocIDLatest, Fields: map[string]any{"build_id": "b1"}},
	}}
	r := New(idx, WithClock(fixedClock()))

	m := r.Resolve(context.Background())
	if m.BizDt != "2026-08-28 12:00:00" {
		t.Fatalf("biz_dt = %q", m.BizDt)
	}
	if len(m.Warnings) != 1 || m.Warnings[0] != "meta_missing_ingest_dt" {
		t.Fatalf("warnings = %v", m.Warnings)
	}
}

func TestResolve_CachesWithinTTL(t *testing.T) {
	idx := &fakeIndex{docs: map[string]index.Doc{
		index.MetaDocIDLatest: {
			ID:     index.MetaDocIDLatest,
			Fields: map[string]any{"ingest_dt": "2026-08-27 03:00:00"},
		},
	}}
	r := New(idx, WithClock(fixedClock()))

	r.Resolve(context.Background())
	r.Resolve(context.Background())
	if idx.fetches != 1 {
		t.Fatalf("expected 1 fetch, got %d", idx.fetches)
	}

	r.Invalidate()
	r.Resolve(context.Background())
	if idx.fetches != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", idx.fetches)
	}
}

func TestMeta_MissingDocIsError(t *testing.T) {
	idx := &fakeIndex{docs: map[string]index.Doc{}}
	r := New(idx)
	if _, err := r.Meta(context.Background()); err == nil {
		t.Fatal("expected error for missing meta doc")
	}
}
