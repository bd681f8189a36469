package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukekoshy/doctor-booking-system/internal/health"
	"github.com/lukekoshy/doctor-booking-system/pkg/config"
	"github.com/lukekoshy/doctor-booking-system/pkg/logger"
)

type pingHandler struct {
	calls atomic.Int32
}

func (p *pingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/ping", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		p.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func newTestApp(t *testing.T) (*Application, *pingHandler) {
	t.Helper()

	cfg := config.FromEnv("test")
	cfg.Log = logger.Discard()

	ping := &pingHandler{}
	a := NewApplication(cfg)
	a.SetApp(health.NewHealthHandler(cfg.Log), ping)
	t.Cleanup(a.idempotencyStore.Stop)
	return a, ping
}

func TestApplication_Routes(t *testing.T) {
	a, _ := newTestApp(t)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/health", wantStatus: http.StatusOK},
		{path: "/ready", wantStatus: http.StatusOK},
		{path: "/metrics", wantStatus: http.StatusOK},
		{path: "/api/v1/unknown", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestApplication_IdempotentReplay(t *testing.T) {
	a, ping := newTestApp(t)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ping", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "k-1")
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, req)
		return w
	}

	first := send()
	second := send()

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, int32(1), ping.calls.Load())
}

func TestApplication_RejectsWrongContentType(t *testing.T) {
	a, ping := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ping", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Zero(t, ping.calls.Load())
}

func TestApplication_WorkersAndClosers(t *testing.T) {
	cfg := config.FromEnv("test")
	cfg.Log = logger.Discard()

	a := NewApplication(cfg)
	a.SetApp(health.NewHealthHandler(cfg.Log))

	started := make(chan struct{})
	var order []string
	a.AddWorker("loop", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		order = append(order, "worker")
		return ctx.Err()
	})
	a.OnShutdown(func() { order = append(order, "first") })
	a.OnShutdown(func() { order = append(order, "second") })

	a.startWorkers()
	<-started
	a.stopWorkers()

	assert.Equal(t, []string{"worker", "second", "first"}, order)
}
