package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/chamada/internal/cooldown"
	"github.com/saturnino-fabrica-de-software/chamada/internal/filestore"
	"github.com/saturnino-fabrica-de-software/chamada/internal/frame"
	"github.com/saturnino-fabrica-de-software/chamada/internal/identity"
	"github.com/saturnino-fabrica-de-software/chamada/internal/matching"
	"github.com/saturnino-fabrica-de-software/chamada/internal/metrics"
	mockprovider "github.com/saturnino-fabrica-de-software/chamada/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/chamada/internal/quality"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

type stubCamera struct{}

func (stubCamera) Status() frame.Status { return frame.StatusStreaming }
func (stubCamera) Reopens() uint64      { return 0 }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter wires the real services over a temporary file store.
func newTestRouter(t *testing.T) *Router {
	t.Helper()
	dir := t.TempDir()
	logger := testLogger()

	identities, err := filestore.NewIdentityRepository(dir)
	require.NoError(t, err)
	attendance, err := filestore.NewAttendanceRepository(dir)
	require.NoError(t, err)
	images, err := filestore.NewImageStore(dir + "/faces")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	slot := frame.NewSlot()
	store := identity.NewStore(identities)
	lock := service.NewIdentityLock()
	gate := quality.NewGate(80, 5)
	embedder := mockprovider.New()
	hub := ws.NewHub(logger)

	loop := service.NewCaptureLoop(slot, embedder, gate, matching.NewEngine(0.45, 0.03), cooldown.NewLedger(2*time.Minute),
		store, attendance, lock, service.DefaultCaptureLoopConfig(), logger).WithMetrics(recorder)
	enroller := service.NewEnroller(slot, embedder, gate, store, identities, images, lock, service.DefaultEnrollmentConfig(), logger).
		WithMetrics(recorder).WithPublisher(hub)

	r := NewRouter(logger, &Dependencies{
		Enrollment:  enroller,
		Identities:  service.NewIdentityService(identities, images, store, lock, logger).WithPublisher(hub),
		Attendance:  service.NewAttendanceService(attendance),
		Annotations: loop,
		Frames:      slot,
		Camera:      stubCamera{},
		Hub:         hub,
		Gatherer:    reg,
	})
	r.Setup()
	return r
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/health", 200},
		{"GET", "/ready", 200},
		{"GET", "/metrics", 200},
		{"GET", "/v1/identities", 200},
		{"GET", "/v1/identities/nobody", 404},
		{"DELETE", "/v1/identities/nobody", 404},
		{"GET", "/v1/attendance", 200},
		{"GET", "/v1/live/status", 200},
		{"GET", "/v1/live/frame.jpg", 503},
		{"GET", "/v1/ws", 426},
		{"GET", "/v1/unknown", 404},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := r.App().Test(httptest.NewRequest(tt.method, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestRouter_EnrollRejectsMissingName(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest("POST", "/v1/enrollments", strings.NewReader(`{"contact":"555"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.App().Test(req)
	require.NoError(t, err)

	assert.Equal(t, 422, resp.StatusCode)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
}

func TestRouter_MetricsExposeNamespace(t *testing.T) {
	r := newTestRouter(t)

	resp, err := r.App().Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(raw), "chamada_")
}

func TestRouter_NoDependencies(t *testing.T) {
	r := NewRouter(testLogger(), nil)
	r.Setup()

	resp, err := r.App().Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = r.App().Test(httptest.NewRequest("GET", "/v1/identities", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}
