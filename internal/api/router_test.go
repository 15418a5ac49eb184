package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/tallyhq/tally/internal/api/v1"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/logger"
	memoryRepo "github.com/tallyhq/tally/internal/repository/memory"
	"github.com/tallyhq/tally/internal/service"
	memoryStore "github.com/tallyhq/tally/internal/store/memory"
	"github.com/tallyhq/tally/internal/testutil"
)

type testServer struct {
	router *gin.Engine
	ingest service.IngestService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)

	appRepo := memoryRepo.NewAppRepository()
	userRepo := memoryRepo.NewAppUserRepository()
	metricStore := memoryStore.NewStore()

	require.NoError(t, appRepo.Create(t.Context(), &app.App{
		ID:       "app_test",
		Key:      "key-1",
		Name:     "Test App",
		Timezone: "UTC",
		Country:  "TR",
	}))

	params := service.ServiceParams{
		Logger:   log,
		Config:   cfg,
		Store:    metricStore,
		AppRepo:  appRepo,
		UserRepo: userRepo,
		Geo:      testutil.StubGeoResolver{},
		EventLog: testutil.NewInMemoryEventLogPublisher(),
		Now: func() time.Time {
			return time.Date(2024, 7, 20, 13, 45, 30, 0, time.UTC)
		},
	}
	ingestService := service.NewIngestService(params)
	analyticsService := service.NewAnalyticsService(params)

	router := NewRouter(Handlers{
		Ingest:    v1.NewIngestHandler(ingestService, cfg, log),
		Analytics: v1.NewAnalyticsHandler(analyticsService, log),
		Health:    v1.NewHealthHandler(log),
	})

	return &testServer{router: router, ingest: ingestService}
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.router.ServeHTTP(w, req)
	s.ingest.Wait()
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteRequiresAppKeyAndDeviceID(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/i?device_id=dev1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get("/i?app_key=key-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteUnknownAppAnswersOK(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/i?app_key=no-such-key&device_id=dev1&begin_session=1")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteThenRead(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/i?app_key=key-1&device_id=dev1&begin_session=1")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.get("/o?app_key=key-1&method=sessions")
	require.Equal(t, http.StatusOK, w.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	year, ok := result["2024"].(map[string]any)
	require.True(t, ok, "expected 2024 in %v", result)
	month, ok := year["7"].(map[string]any)
	require.True(t, ok)
	day, ok := month["20"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), day["t"])
}

func TestWriteEventsThenReadCatalog(t *testing.T) {
	s := newTestServer(t)

	events := `[{"key":"purchase","count":2,"sum":9.98,"segmentation":{"tier":"gold"}}]`
	w := s.get("/i?app_key=key-1&device_id=dev1&events=" + strings.ReplaceAll(events, " ", "%20"))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.get("/o?app_key=key-1&method=get_events")
	require.Equal(t, http.StatusOK, w.Code)

	var catalog map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	assert.Equal(t, []any{"purchase"}, catalog["list"])
}

func TestReadRequiresAppKey(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/o?method=sessions")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadUnknownMethod(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/o?app_key=key-1&method=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadUnknownAppAnswersEmptyOK(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/o?app_key=no-such-key&method=sessions")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestReadSupportsJSONP(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/o?app_key=key-1&method=sessions&callback=draw")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "draw("), "body: %s", w.Body.String())
}
