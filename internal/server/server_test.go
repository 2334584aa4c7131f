package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/config"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/metrics"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/sweep"
)

type fakeRunner struct {
	summary sweep.Summary
	err     error
}

func (f *fakeRunner) Run(context.Context) (sweep.Summary, error) {
	return f.summary, f.err
}

func newTestRouter(runner SweepRunner, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(runner, metrics.New(), cfg, log, nil).Router()
}

func TestReminderSweepTrigger(t *testing.T) {
	t.Run("HandledCompletionAnswers200WithSummary", func(t *testing.T) {
		runner := &fakeRunner{summary: sweep.Summary{
			Candidates:     3,
			SendsAttempted: 2,
			Sent:           1,
			Failed:         1,
			SkippedNoEmail: 1,
			StartedAt:      time.Now(),
		}}
		router := newTestRouter(runner, &config.Config{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/jobs/reminder-sweep", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, "partial per-reminder failures still answer 200")

		var got sweep.Summary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, 3, got.Candidates)
		assert.Equal(t, 1, got.Sent)
		assert.Equal(t, 1, got.SkippedNoEmail)
	})

	t.Run("SelectionFailureAnswers500", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("sweep selection: store unreachable")}
		router := newTestRouter(runner, &config.Config{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/jobs/reminder-sweep", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "store unreachable")
	})

	t.Run("RejectsMissingTriggerToken", func(t *testing.T) {
		router := newTestRouter(&fakeRunner{}, &config.Config{TriggerToken: "s3cret"})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/jobs/reminder-sweep", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("AcceptsConfiguredTriggerToken", func(t *testing.T) {
		router := newTestRouter(&fakeRunner{}, &config.Config{TriggerToken: "s3cret"})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/jobs/reminder-sweep", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, &config.Config{InstanceID: "test-instance"})

	for _, path := range []string{"/health", "/healthz"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, path)

		var got HealthStatus
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "healthy", got.Status)
		assert.Equal(t, "test-instance", got.InstanceID)
	}
}
