package handler_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/biz"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/handler"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/index"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/metrics"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/router"
	"github.com/BluePanda-io/ai-agent-apis/internal/ticket/store"
	"github.com/BluePanda-io/ai-agent-apis/pkg/infra/middleware"
	uerrors "github.com/BluePanda-io/ai-agent-apis/pkg/utils/errors"
	"github.com/BluePanda-io/ai-agent-apis/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func (m *mockEmbedder) Name() string { return "mock" }

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

type testServer struct {
	engine   *gin.Engine
	store    *store.MemoryStore
	index    *index.MemoryIndex
	embedder *mockEmbedder
	metrics  *metrics.TicketMetrics
}

func newTestServer(t *testing.T, checks ...handler.HealthCheck) *testServer {
	t.Helper()
	ts := &testServer{
		store:    store.NewMemoryStore(),
		index:    index.NewMemoryIndex(3),
		embedder: &mockEmbedder{},
		metrics:  metrics.New(),
	}
	ts.embedder.On("EmbedSingle", mock.Anything, mock.Anything).Return([]float32{1, 0, 0}, nil).Maybe()

	cfg := &biz.Config{DefaultTopK: 5, MaxTopK: 50, IndexTimeout: time.Second, ReconcileConcurrency: 2, Metrics: ts.metrics}
	coord := biz.NewCoordinator(ts.store, ts.index, ts.embedder, nil, cfg)
	searcher := biz.NewSearcher(ts.store, ts.index, ts.embedder, nil, cfg)

	ts.engine = gin.New()
	ts.engine.Use(middleware.RequestID())
	router.Register(ts.engine,
		handler.NewTicketHandler(coord, searcher),
		handler.NewHealthHandler(time.Second, checks...),
		handler.NewMetricsHandler(ts.metrics),
	)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestCreateAndGet(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/v1/tickets",
		`{"identifier":"SUP-12","linear_id":"lin_12","title":"Login broken","description":"SSO fails","team":"auth"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, w.Header().Get(middleware.HeaderXRequestID), env.RequestID)

	var created map[string]any
	decode(t, env.Data, &created)
	assert.Equal(t, "SUP-12", created["identifier"])
	assert.Equal(t, "open", created["status"])
	assert.Equal(t, "medium", created["priority"])
	assert.Equal(t, "auth", created["team"])
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, ts.index.Len())

	for _, token := range []string{id, "SUP-12", "lin_12"} {
		w, env = ts.do(t, http.MethodGet, "/v1/tickets/"+token, "")
		require.Equal(t, http.StatusOK, w.Code, token)
		var got map[string]any
		decode(t, env.Data, &got)
		assert.Equal(t, id, got["_id"])
	}
}

func TestCreateWithoutIdentifierReturnsNull(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/v1/tickets",
		`{"title":"Login fails","description":"Cannot log in on mobile"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	decode(t, env.Data, &created)
	assert.Contains(t, created, "identifier")
	assert.Nil(t, created["identifier"])
	assert.Contains(t, created, "linear_id")
	assert.Equal(t, "open", created["status"])
	assert.Equal(t, "medium", created["priority"])
}

func TestCreateRejectsInvalid(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/v1/tickets", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uerrors.ErrBadRequest.Code, env.Code)

	w, env = ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"nodash","title":"t","description":"d"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uerrors.ErrTicketInvalidIdentifier.Code, env.Code)

	w, env = ts.do(t, http.MethodPost, "/v1/tickets", `{"title":"  ","description":"d"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uerrors.ErrTicketInvalid.Code, env.Code)

	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-1","title":"t","description":"d"}`)
	w, env = ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-1","title":"t2","description":"d2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, uerrors.ErrTicketDuplicateIdentifier.Code, env.Code)
}

func TestGetNotFound(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodGet, "/v1/tickets/SUP-404", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, uerrors.ErrTicketNotFound.Code, env.Code)
}

func TestUpdateRecordsChangedBy(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-2","title":"Old","description":"d"}`)

	w, env := ts.do(t, http.MethodPut, "/v1/tickets/SUP-2",
		`{"title":"New","comments":[{"text":"looking"}]}`, handler.HeaderChangedBy, "alice")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated map[string]any
	decode(t, env.Data, &updated)
	assert.Equal(t, "New", updated["title"])
	assert.Len(t, updated["comments"], 1)

	w, env = ts.do(t, http.MethodGet, "/v1/tickets/SUP-2/versions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var versions []map[string]any
	decode(t, env.Data, &versions)
	require.NotEmpty(t, versions)
	for _, v := range versions {
		assert.Equal(t, "alice", v["changedBy"])
	}
}

func TestUpdateStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-3","title":"t","description":"d"}`)

	w, env := ts.do(t, http.MethodPatch, "/v1/tickets/SUP-3", `{"status":"closed"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got map[string]any
	decode(t, env.Data, &got)
	assert.Equal(t, "closed", got["status"])

	w, env = ts.do(t, http.MethodPatch, "/v1/tickets/SUP-3", `{"status":"done"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uerrors.ErrTicketInvalid.Code, env.Code)
}

func TestDelete(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-4","title":"t","description":"d"}`)
	require.Equal(t, 1, ts.index.Len())

	w, _ := ts.do(t, http.MethodDelete, "/v1/tickets/SUP-4", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.index.Len())

	w, _ = ts.do(t, http.MethodDelete, "/v1/tickets/SUP-4", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-5","title":"a","description":"d","priority":"high"}`)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-6","title":"b","description":"d"}`)

	w, env := ts.do(t, http.MethodGet, "/v1/tickets?priority=high", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		List   []map[string]any `json:"list"`
		Total  int64            `json:"total"`
		Offset int              `json:"offset"`
		Limit  int              `json:"limit"`
	}
	decode(t, env.Data, &page)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.List, 1)
	assert.Equal(t, "SUP-5", page.List[0]["identifier"])
	assert.Equal(t, 20, page.Limit)

	w, _ = ts.do(t, http.MethodGet, "/v1/tickets?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-7","title":"Printer jam","description":"paper stuck"}`)

	w, env := ts.do(t, http.MethodGet, "/v1/search?query=printer&top_k=3", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var results []map[string]any
	decode(t, env.Data, &results)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0]["similarity"], 1e-6)

	w, env = ts.do(t, http.MethodGet, "/v1/search?query=%20", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uerrors.ErrTicketInvalidQuery.Code, env.Code)
}

func TestSearchUpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.embedder.ExpectedCalls = nil
	ts.embedder.On("EmbedSingle", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	w, env := ts.do(t, http.MethodGet, "/v1/search?query=printer", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, uerrors.ErrTicketUpstreamUnavailable.Code, env.Code)
}

func TestConsistencyEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.embedder.ExpectedCalls = nil
	ts.embedder.On("EmbedSingle", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()
	ts.embedder.On("EmbedSingle", mock.Anything, mock.Anything).Return([]float32{1, 0, 0}, nil)

	w, _ := ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-8","title":"t","description":"d"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 0, ts.index.Len())

	w, env := ts.do(t, http.MethodGet, "/v1/consistency/events?status=pending", "")
	require.Equal(t, http.StatusOK, w.Code)
	var events []map[string]any
	decode(t, env.Data, &events)
	require.Len(t, events, 1)

	w, env = ts.do(t, http.MethodPost, "/v1/consistency/reconcile", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report biz.ReconcileReport
	decode(t, env.Data, &report)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 1, ts.index.Len())

	w, _ = ts.do(t, http.MethodGet, "/v1/consistency/events?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = ts.do(t, http.MethodPost, "/v1/consistency/reconcile?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-9","title":"t","description":"d"}`)
	ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-10","title":"t","description":"d"}`)

	w, _ := ts.do(t, http.MethodDelete, "/v1/index", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, ts.index.Len())

	w, env := ts.do(t, http.MethodPost, "/v1/index/rebuild?purge=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report biz.RebuildReport
	decode(t, env.Data, &report)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 2, ts.index.Len())

	w, _ = ts.do(t, http.MethodPost, "/v1/index/rebuild?purge=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	ok := handler.HealthCheck{Name: "mongodb", Ping: func(context.Context) error { return nil }}
	ts := newTestServer(t, ok)
	w, _ := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mongodb":"ok"`)

	down := handler.HealthCheck{Name: "milvus", Ping: func(context.Context) error { return errors.New("dial timeout") }}
	ts = newTestServer(t, ok, down)
	w, _ = ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "dial timeout")
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/v2/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, uerrors.ErrRouteNotFound.Code, env.Code)
}

func TestMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.embedder.ExpectedCalls = nil
	ts.embedder.On("EmbedSingle", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()
	ts.embedder.On("EmbedSingle", mock.Anything, mock.Anything).Return([]float32{1, 0, 0}, nil)

	w, _ := ts.do(t, http.MethodPost, "/v1/tickets", `{"identifier":"SUP-11","title":"t","description":"d"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	ts.do(t, http.MethodGet, "/v1/search?query=t", "")

	w, env := ts.do(t, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st metrics.Stats
	decode(t, env.Data, &st)
	assert.Equal(t, uint64(1), st.PartialConsistency["upsert"])
	assert.Equal(t, uint64(1), st.Search.Total)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), `ticket_partial_consistency_total{operation="upsert"} 1`)
	assert.Contains(t, rec.Body.String(), "ticket_searches_total 1")
}
