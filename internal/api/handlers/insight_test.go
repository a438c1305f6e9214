package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/api/handlers"
	"github.com/dvloznov/sales-ledger/internal/domain"
	"github.com/dvloznov/sales-ledger/internal/insight"
)

type stubGenerator struct {
	insight domain.Insight
	err     error
}

func (g *stubGenerator) GenerateInsight(_ context.Context, _ map[string]interface{}) (domain.Insight, error) {
	if g.err != nil {
		return domain.Insight{}, g.err
	}
	return g.insight, nil
}

type stubFlusher struct {
	err    error
	called int
}

func (f *stubFlusher) Flush(_ context.Context) error {
	f.called++
	return f.err
}

func waitForInsightStatus(t *testing.T, h *handlers.InsightHandler, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec := httptest.NewRecorder()
		h.GetInsight(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insight", nil))
		if rec.Code == http.StatusOK {
			body := decodeBody(t, rec)
			if body["status"] == want {
				return body
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for insight status %q", want)
	return nil
}

func TestGetInsightKicksOffGeneration(t *testing.T) {
	store := newSeededStore(t)
	gen := &stubGenerator{insight: domain.Insight{Drive: "Rings drive revenue.", Win: "w", Risk: "r", Action: "a"}}
	svc := insight.NewService(store, gen, zerolog.Nop())
	h := handlers.NewInsightHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetInsight(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insight", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["status"] != insight.StatusGenerating {
		t.Errorf("status = %v, want generating on first request", body["status"])
	}

	body := waitForInsightStatus(t, h, insight.StatusFresh)
	ins, ok := body["insight"].(map[string]interface{})
	if !ok || ins["drive"] != "Rings drive revenue." {
		t.Errorf("insight = %v", body["insight"])
	}
}

func TestGetInsightWithoutGeneratorServesCache(t *testing.T) {
	store := newSeededStore(t)
	if err := store.SaveInsight(domain.Insight{Drive: "Old news.", Win: "w", Risk: "r", Action: "a"}, "all", time.Now()); err != nil {
		t.Fatalf("SaveInsight failed: %v", err)
	}
	svc := insight.NewService(store, nil, zerolog.Nop())
	h := handlers.NewInsightHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetInsight(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insight?range=all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != insight.StatusFresh {
		t.Errorf("status = %v, want fresh from cache", body["status"])
	}
}

func TestGetInsightRejectsBadRange(t *testing.T) {
	svc := insight.NewService(newSeededStore(t), nil, zerolog.Nop())
	h := handlers.NewInsightHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetInsight(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insight?range=quarterly", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRefreshInsightWithoutGenerator(t *testing.T) {
	svc := insight.NewService(newSeededStore(t), nil, zerolog.Nop())
	h := handlers.NewInsightHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.RefreshInsight(rec, httptest.NewRequest(http.MethodPost, "/api/v1/insight/refresh", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRefreshInsightAccepted(t *testing.T) {
	store := newSeededStore(t)
	gen := &stubGenerator{insight: domain.Insight{Drive: "Fresh take.", Win: "w", Risk: "r", Action: "a"}}
	svc := insight.NewService(store, gen, zerolog.Nop())
	h := handlers.NewInsightHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.RefreshInsight(rec, httptest.NewRequest(http.MethodPost, "/api/v1/insight/refresh?range=30d", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["status"] != insight.StatusGenerating {
		t.Errorf("status = %v, want generating", body["status"])
	}
}

func TestSyncMirror(t *testing.T) {
	store := newSeededStore(t)
	if err := store.SetRemoteURL("gs://test-bucket/ledger.json"); err != nil {
		t.Fatalf("SetRemoteURL failed: %v", err)
	}
	flusher := &stubFlusher{}
	h := handlers.NewMirrorHandler(flusher, store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.SyncMirror(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mirror/sync", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if flusher.called != 1 {
		t.Errorf("Flush called %d times, want 1", flusher.called)
	}
	if body := decodeBody(t, rec); body["url"] != "gs://test-bucket/ledger.json" {
		t.Errorf("url = %v", body["url"])
	}
}

func TestSyncMirrorNotConfigured(t *testing.T) {
	h := handlers.NewMirrorHandler(nil, newSeededStore(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.SyncMirror(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mirror/sync", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestSyncMirrorUploadFailure(t *testing.T) {
	flusher := &stubFlusher{err: errors.New("bucket unavailable")}
	h := handlers.NewMirrorHandler(flusher, newSeededStore(t), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.SyncMirror(rec, httptest.NewRequest(http.MethodPost, "/api/v1/mirror/sync", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
