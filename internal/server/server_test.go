package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protein-advisor/internal/catalog"
	"protein-advisor/internal/common/logger"
	"protein-advisor/internal/dialogue"
	"protein-advisor/internal/llm"
	"protein-advisor/internal/models"
)

// ==========================================
// Fixtures
// ==========================================

func f(v float64) *float64 { return &v }

type stubClassifier struct{ intent models.Intent }

func (s stubClassifier) Classify(context.Context, string) models.Intent { return s.intent }

type stubComposer struct {
	fragments []string
	started   chan struct{}
	release   chan struct{}
}

func (s *stubComposer) Compose(ctx context.Context, in llm.WriterInput) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.started != nil {
			s.started <- struct{}{}
		}
		if s.release != nil {
			<-s.release
		}
		for _, frag := range s.fragments {
			if !yield(frag, nil) {
				return
			}
		}
	}
}

type testEnv struct {
	router   *gin.Engine
	sessions *dialogue.Manager
	composer *stubComposer
}

func setupServer(t *testing.T, checks ...ReadinessCheck) *testEnv {
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	cat := models.NewCatalog([]models.Product{
		{ID: "BA001", Brand: "BrandA", Name: "A Whey", Purity: f(70), PricePerKg: f(3000)},
		{ID: "BB001", Brand: "BrandB", Name: "B Whey", Purity: f(60), PricePerKg: f(2000)},
		{ID: "BC001", Brand: "BrandC", Name: "C Whey", Purity: f(65), PricePerKg: f(2500)},
	}, "test", 0)
	store := catalog.StaticStore{Catalog: cat}

	composer := &stubComposer{fragments: []string{
		"Try **B Whey** <!-- ID: BB001 -->.",
		"\n[suggestions]\n1. Cheaper?\n[/suggestions]",
	}}
	sessions := dialogue.NewManager(time.Hour, log)
	engine := dialogue.NewEngine(store,
		stubClassifier{intent: models.Intent{KeyMetric: models.MetricPrice, DesireSummary: "cheaper"}},
		composer, log)

	router := NewRouter(RouterConfig{
		ServiceName: "protein-advisor-test",
		Handler:     NewHandler(sessions, engine, store, log),
		Checks:      checks,
		Logger:      log,
	})
	return &testEnv{router: router, sessions: sessions, composer: composer}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *testEnv) chattingSession(t *testing.T) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dialogue.View](t, rec).ID

	persona := models.DefaultPersona()
	persona.CurrentBrand = "BrandA"
	persona.BaselineProductID = "BA001"
	rec = e.do(http.MethodPut, "/api/sessions/"+id+"/persona", persona)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(http.MethodPost, "/api/sessions/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

// ==========================================
// Health
// ==========================================

func TestHealthAndReady(t *testing.T) {
	env := setupServer(t,
		ReadinessCheck{Name: "catalog", Check: func(context.Context) error { return nil }},
	)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/ready", nil).Code)

	rec := env.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	down := setupServer(t,
		ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec = down.do(http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestRequestIDHeader(t *testing.T) {
	env := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-1")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get(headerRequestID))

	rec = env.do(http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

// ==========================================
// Sessions and persona
// ==========================================

func TestSessionLifecycle(t *testing.T) {
	env := setupServer(t)

	rec := env.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[dialogue.View](t, rec)
	assert.Equal(t, dialogue.StateDiagnosis, view.State)

	rec = env.do(http.MethodGet, "/api/sessions/"+view.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]dialogue.View](t, rec)["sessions"], 1)

	rec = env.do(http.MethodDelete, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/sessions/"+view.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[ErrorEnvelope](t, rec).Error.Code)
}

func TestPersonaUpdates(t *testing.T) {
	env := setupServer(t)
	rec := env.do(http.MethodPost, "/api/sessions", nil)
	id := decode[dialogue.View](t, rec).ID

	bad := models.DefaultPersona()
	bad.CurrentBrand = "BrandB"
	bad.BaselineProductID = "BA001"
	rec = env.do(http.MethodPut, "/api/sessions/"+id+"/persona", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PERSONA_INVALID", decode[ErrorEnvelope](t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/sessions/"+id+"/turns", TurnRequest{Text: "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SESSION_STATE_INVALID", decode[ErrorEnvelope](t, rec).Error.Code)

	good := models.DefaultPersona()
	good.CurrentBrand = "BrandA"
	rec = env.do(http.MethodPut, "/api/sessions/"+id+"/persona", good)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BrandA", decode[dialogue.View](t, rec).Persona.CurrentBrand)

	rec = env.do(http.MethodPost, "/api/sessions/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dialogue.StateChatIdle, decode[dialogue.View](t, rec).State)

	rec = env.do(http.MethodPut, "/api/sessions/"+id+"/persona", good)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// ==========================================
// Turns
// ==========================================

func TestSubmitTurn(t *testing.T) {
	env := setupServer(t)
	id := env.chattingSession(t)

	rec := env.do(http.MethodPost, "/api/sessions/"+id+"/turns", TurnRequest{Text: "cheaper please"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[TurnResponse](t, rec)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "Try **B Whey** <!-- ID: BB001 -->.", resp.Turn.Text)
	assert.Equal(t, []string{"Cheaper?"}, resp.Turn.Suggestions)
	require.NotNil(t, resp.Selection)
	assert.Equal(t, "BB001", resp.Selection.Candidates[0].ID)
	require.Len(t, resp.ComparisonTable, 3)
	assert.True(t, resp.ComparisonTable[0].IsBaseline)

	rec = env.do(http.MethodGet, "/api/sessions/"+id, nil)
	view := decode[dialogue.View](t, rec)
	assert.Len(t, view.Turns, 2)
	assert.NotNil(t, view.LastSelection)

	rec = env.do(http.MethodPost, "/api/sessions/"+id+"/turns", TurnRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorEnvelope](t, rec).Error.Code)
}

func TestSubmitTurn_InFlightConflict(t *testing.T) {
	env := setupServer(t)
	id := env.chattingSession(t)
	env.composer.started = make(chan struct{}, 1)
	env.composer.release = make(chan struct{})

	done := make(chan int)
	go func() {
		done <- env.do(http.MethodPost, "/api/sessions/"+id+"/turns", TurnRequest{Text: "first"}).Code
	}()
	<-env.composer.started

	rec := env.do(http.MethodPost, "/api/sessions/"+id+"/turns", TurnRequest{Text: "second"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "TURN_IN_FLIGHT", decode[ErrorEnvelope](t, rec).Error.Code)

	close(env.composer.release)
	assert.Equal(t, http.StatusOK, <-done)

	s, err := env.sessions.Get(id)
	require.NoError(t, err)
	assert.Len(t, s.Turns(), 2)
}

func TestSubmitTurn_Stream(t *testing.T) {
	env := setupServer(t)
	id := env.chattingSession(t)

	rec := env.do(http.MethodPost, "/api/sessions/"+id+"/turns?stream=true", TurnRequest{Text: "cheaper"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event:fragment"))
	assert.Contains(t, body, "event:turn")
	assert.Less(t, strings.Index(body, "event:fragment"), strings.Index(body, "event:turn"))
	assert.Contains(t, body, `"accepted":true`)
}

// ==========================================
// Catalog
// ==========================================

func TestCatalogEndpoints(t *testing.T) {
	env := setupServer(t)

	rec := env.do(http.MethodGet, "/api/catalog/brands", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BrandA", "BrandB", "BrandC"}, decode[map[string][]string](t, rec)["brands"])

	rec = env.do(http.MethodGet, "/api/catalog/brands/BrandB/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Products []models.Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "BB001", body.Products[0].ID)

	rec = env.do(http.MethodGet, "/api/catalog/brands/Nope/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"products":[]`)
}
