package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"catalog", "index", "embedding"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
}

func TestCheck_CatalogError(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, &mockPinger{}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["catalog"] != CheckError {
		t.Errorf("expected catalog %q, got %q", CheckError, r.Checks["catalog"])
	}
	if r.Checks["index"] != CheckOK {
		t.Errorf("expected index %q, got %q", CheckOK, r.Checks["index"])
	}
}

func TestCheck_IndexError(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{err: errors.New("timeout")}, nil)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["index"] != CheckError {
		t.Errorf("expected index %q, got %q", CheckError, r.Checks["index"])
	}
}

func TestCheck_AllFail(t *testing.T) {
	svc := New(
		&mockPinger{err: errors.New("db down")},
		&mockPinger{err: errors.New("index down")},
		&mockEmbeddingChecker{err: errors.New("emb down")},
	)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	for _, name := range []string{"catalog", "index", "embedding"} {
		if r.Checks[name] != CheckError {
			t.Errorf("expected %s error", name)
		}
	}
}

func TestCheck_NoEmbedding(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when embedding is nil")
	}
}
