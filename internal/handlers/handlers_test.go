package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamepop/fin-x-watcher/internal/analysis"
	"github.com/gamepop/fin-x-watcher/internal/metrics"
	"github.com/gamepop/fin-x-watcher/internal/classifier"
	"github.com/gamepop/fin-x-watcher/internal/monitor"
	"github.com/gamepop/fin-x-watcher/internal/websocket"
	"github.com/gamepop/fin-x-watcher/pkg/clients"
	"github.com/gamepop/fin-x-watcher/pkg/clients/xapi"
	"github.com/gamepop/fin-x-watcher/pkg/entities"
	"github.com/gamepop/fin-x-watcher/pkg/llm"
	"github.com/gamepop/fin-x-watcher/pkg/logging"
	"github.com/gamepop/fin-x-watcher/pkg/models"
	"github.com/gamepop/fin-x-watcher/pkg/monitoring"
)

type stubFetcher struct {
	posts []models.Post
	err   error
	trend models.TrendSummary
}

func (s *stubFetcher) SearchRecent(_ context.Context, _ string, _ int) ([]models.Post, error) {
	return s.posts, s.err
}

func (s *stubFetcher) CountTrend(_ context.Context, _ string) models.TrendSummary {
	return s.trend
}

type stubLLM struct{ response string }

func (s *stubLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	return s.response, nil
}

type stubSource struct{}

func (stubSource) ReplaceStreamRules(_ context.Context, _ []entities.StreamRule) error { return nil }

func (stubSource) OpenStream(_ context.Context) (monitor.StreamConn, error) {
	return nil, &clients.UnavailableError{Cause: io.EOF}
}

var _ monitor.StreamConn = (*xapi.StreamReader)(nil)

func newTestRouter(t *testing.T, fetcher *stubFetcher, verdictJSON string) (*gin.Engine, *monitor.Monitor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewLoggerWithService("test")
	primary := classifier.NewLLMClassifier(&stubLLM{response: verdictJSON}, nil)
	pipeline := analysis.NewPipeline(fetcher, primary, nil, nil, nil)
	mon := monitor.New(monitor.Config{
		Source: stubSource{},
		Retry:  clients.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	hub := websocket.NewHub(logger)
	go hub.Run()

	h := New(Config{
		Pipeline: pipeline,
		Monitor:  mon,
		Hub:      hub,
		Breaker:  func() (string, int, time.Time) { return "closed", 0, time.Time{} },
		Logger:   logger,
	})

	router := gin.New()
	h.RegisterRoutes(router)
	return router, mon
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndpoint(t *testing.T) {
	fetcher := &stubFetcher{
		posts: []models.Post{{ID: "1", Text: "bank run", Author: models.Author{Username: "u"}}},
	}
	router, _ := newTestRouter(t, fetcher, `{"risk_level":"MEDIUM","summary":"complaints","confidence":0.7}`)

	w := doJSON(router, http.MethodPost, "/analyze", gin.H{"entity": "Chase"})

	require.Equal(t, http.StatusOK, w.Code)
	var report analysis.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "Chase", report.Entity.Name)
	assert.Equal(t, entities.TypeTraditionalBank, report.Entity.Type)
	assert.Equal(t, models.RiskMedium, report.Verdict.RiskLevel)
}

func TestAnalyzeEndpoint_RequiresEntity(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{}, `{"risk_level":"LOW"}`)
	w := doJSON(router, http.MethodPost, "/analyze", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeEndpoint_AuthFailureIsBadGateway(t *testing.T) {
	fetcher := &stubFetcher{err: &clients.AuthError{Message: "bad token"}}
	router, _ := newTestRouter(t, fetcher, `{"risk_level":"LOW"}`)

	w := doJSON(router, http.MethodPost, "/analyze", gin.H{"entity": "Chase"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAnalyzeEndpoint_RecordsClassifierFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fetcher := &stubFetcher{
		posts: []models.Post{{ID: "1", Text: "bank run", Author: models.Author{Username: "u"}}},
	}
	primary := classifier.NewLLMClassifier(&stubLLM{response: "not a verdict"}, nil)
	pipeline := analysis.NewPipeline(fetcher, primary, nil, nil, nil)
	serviceMetrics := metrics.New(monitoring.NewMetricsCollector("sentinel-test", "test", ""))

	h := New(Config{
		Pipeline: pipeline,
		Metrics:  serviceMetrics,
		Logger:   logging.NewNopLogger(),
	})
	router := gin.New()
	router.POST("/analyze", h.Analyze)

	w := doJSON(router, http.MethodPost, "/analyze", gin.H{"entity": "Chase"})

	require.Equal(t, http.StatusOK, w.Code)
	var report analysis.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Equal(t, models.RiskUnknown, report.Verdict.RiskLevel)

	assert.Equal(t, 1.0, testutil.ToFloat64(serviceMetrics.ClassifierFailures.WithLabelValues("search")))
	assert.Equal(t, 1.0, testutil.ToFloat64(serviceMetrics.AnalysesTotal.WithLabelValues("Chase", string(models.RiskUnknown))))
}

func TestInstitutionsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{}, `{"risk_level":"LOW"}`)

	w := doJSON(router, http.MethodGet, "/institutions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Institutions []entities.Institution `json:"institutions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.Institutions)

	found := false
	for _, inst := range payload.Institutions {
		if inst.Name == "coinbase" {
			found = true
			assert.Equal(t, entities.TypeCryptoExchange, inst.Type)
		}
	}
	assert.True(t, found)
}

func TestMonitorLifecycleEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{}, `{"risk_level":"LOW"}`)

	w := doJSON(router, http.MethodPost, "/monitor/start", gin.H{"entities": []string{"Chase"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/monitor/start", gin.H{"entities": []string{"Chase"}})
	assert.Equal(t, http.StatusConflict, w.Code, "second start must conflict")

	w = doJSON(router, http.MethodGet, "/monitor/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Contains(t, status, "monitor")
	assert.Contains(t, status, "circuit_breaker")
	assert.Contains(t, status, "websocket")

	w = doJSON(router, http.MethodPost, "/monitor/entities", gin.H{"name": "Coinbase"})
	require.Equal(t, http.StatusOK, w.Code)
	var entity entities.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entity))
	assert.Equal(t, entities.TypeCryptoExchange, entity.Type)

	w = doJSON(router, http.MethodPost, "/monitor/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/monitor/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMonitorStartValidation(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{}, `{"risk_level":"LOW"}`)
	w := doJSON(router, http.MethodPost, "/monitor/start", gin.H{"entities": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeBufferEndpoint_EmptyBuffer(t *testing.T) {
	router, _ := newTestRouter(t, &stubFetcher{}, `{"risk_level":"LOW"}`)

	w := doJSON(router, http.MethodPost, "/monitor/analyze-buffer", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var verdict models.RiskVerdict
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verdict))
	assert.Equal(t, models.RiskLow, verdict.RiskLevel)
}
