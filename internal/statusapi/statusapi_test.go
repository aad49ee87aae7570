package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/audiobook"
	"github.com/NguyenAnhDuc-2k9/novapad-core/internal/boundedqueue"
)

func newTestRouter(registry *Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, registry)
	return router
}

func TestHealthzReportsHealthy(t *testing.T) {
	router := newTestRouter(NewRegistry())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestGetJobReturnsNotFoundForUnknownID(t *testing.T) {
	router := newTestRouter(NewRegistry())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsReflectsRegistryState(t *testing.T) {
	registry := NewRegistry()
	queue := boundedqueue.New[audiobook.Event]("statusapi-test", 8)

	go registry.Track("job-1", 2, queue)

	queue.Push(audiobook.Event{Status: &audiobook.StatusUpdate{Index: 0, Status: audiobook.StatusRunning}})
	queue.Push(audiobook.Event{Progress: &audiobook.ProgressUpdate{Completed: 1, Total: 2}})
	queue.Push(audiobook.Event{Done: &audiobook.Done{ReportPath: "/tmp/report.txt"}})

	require.Eventually(t, func() bool {
		snap, ok := registry.Get("job-1")
		return ok && snap.ReportPath == "/tmp/report.txt"
	}, time.Second, 10*time.Millisecond)

	router := newTestRouter(registry)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body GetJobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "job-1", body.Jobs[0].ID)
	assert.Equal(t, 1, body.Jobs[0].Completed)
	assert.Equal(t, "/tmp/report.txt", body.Jobs[0].ReportPath)
}
