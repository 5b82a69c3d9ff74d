package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragdemo-go/internal/engine"
	"github.com/54b3r/ragdemo-go/internal/logging"
	"github.com/54b3r/ragdemo-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fake querier
// ---------------------------------------------------------------------------

// fakeQuerier implements Querier and records the arguments of each call.
type fakeQuerier struct {
	mu      sync.Mutex
	answer  string
	sources []rag.Document
	err     error
	block   bool
	calls   int
	gotQ    string
	gotK    int
}

func (f *fakeQuerier) Ask(ctx context.Context, question string, k int) (*engine.Answer, error) {
	f.mu.Lock()
	f.calls++
	f.gotQ, f.gotK = question, k
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("engine: %w", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	return &engine.Answer{Question: question, Text: f.answer, Sources: f.sources}, nil
}

// newTestServer builds a *Server with a fake querier and an isolated registry.
func newTestServer() *Server {
	return newQueryTestServer(&fakeQuerier{answer: "ok"})
}

func newQueryTestServer(q Querier) *Server {
	return &Server{
		querier: q,
		cfg:     &Config{Port: 8080, QueryTimeout: time.Minute},
		log:     logging.Discard(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleQuery(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /api/query: validation
// ---------------------------------------------------------------------------

func TestHandleQuery_BadRequests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `not-json`},
		{"missing question", `{"k":2}`},
		{"blank question", `{"question":"   "}`},
		{"negative k", `{"question":"q","k":-1}`},
		{"k too large", `{"question":"q","k":51}`},
		{"unknown field", `{"question":"q","message":"hi"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			q := &fakeQuerier{}
			w := postQuery(t, newQueryTestServer(q), tc.body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if q.calls != 0 {
				t.Errorf("querier should not be called, got %d calls", q.calls)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /api/query: happy path
// ---------------------------------------------------------------------------

func TestHandleQuery_Success(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{
		answer: "RAG grounds answers in retrieved text.",
		sources: []rag.Document{
			{ID: "a", Source: "inline:1", Content: "RAG combines retrieval...", Distance: 0.1,
				Metadata: map[string]string{"kind": "inline"}},
		},
	}
	w := postQuery(t, newQueryTestServer(q), `{"question":"  What is RAG? ","k":2}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if q.gotQ != "What is RAG?" || q.gotK != 2 {
		t.Errorf("querier got (%q, %d), want (%q, 2)", q.gotQ, q.gotK, "What is RAG?")
	}

	var resp queryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != q.answer || resp.Question != "What is RAG?" {
		t.Errorf("response: got %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Source != "inline:1" || resp.Sources[0].Metadata["kind"] != "inline" {
		t.Errorf("sources: got %+v", resp.Sources)
	}
}

func TestHandleQuery_EmptySourcesIsArray(t *testing.T) {
	t.Parallel()

	w := postQuery(t, newQueryTestServer(&fakeQuerier{answer: "I don't know."}), `{"question":"q"}`)
	if !strings.Contains(w.Body.String(), `"sources":[]`) {
		t.Errorf("expected an empty sources array, got %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// POST /api/query: error mapping
// ---------------------------------------------------------------------------

func TestHandleQuery_ErrorStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"store missing", fmt.Errorf("rag: %w", rag.ErrStoreNotFound), http.StatusServiceUnavailable},
		{"upstream failure", fmt.Errorf("engine: %w: 500", rag.ErrService), http.StatusBadGateway},
		{"dimension mismatch", fmt.Errorf("store: %w", rag.ErrDimensionMismatch), http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := postQuery(t, newQueryTestServer(&fakeQuerier{err: tc.err}), `{"question":"q"}`)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected JSON error body, got %q (err=%v)", w.Body.String(), err)
			}
			if strings.Contains(w.Body.String(), "boom") {
				t.Error("internal error text leaked to client")
			}
		})
	}
}

func TestHandleQuery_Timeout(t *testing.T) {
	t.Parallel()

	s := newQueryTestServer(&fakeQuerier{block: true})
	s.cfg.QueryTimeout = 20 * time.Millisecond

	w := postQuery(t, s, `{"question":"q"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Full handler chain via New
// ---------------------------------------------------------------------------

func newWiredServer(t *testing.T, q Querier, apiKey string) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := New(q, &Config{
		APIKey:          apiKey,
		Logger:          logging.Discard(),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s, reg
}

func TestNew_RejectsNilQuerier(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for nil querier")
	}
}

func TestServer_RoutesAndAuth(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{answer: "ok"}
	s, _ := newWiredServer(t, q, "secret")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	do := func(method, path, body, token string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := ts.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		resp.Body.Close()
		return resp
	}

	if r := do(http.MethodGet, "/api/health", "", ""); r.StatusCode != http.StatusOK {
		t.Errorf("health: got %d", r.StatusCode)
	}
	if r := do(http.MethodPost, "/api/query", `{"question":"q"}`, ""); r.StatusCode != http.StatusUnauthorized {
		t.Errorf("query without token: got %d", r.StatusCode)
	}
	r := do(http.MethodPost, "/api/query", `{"question":"q"}`, "secret")
	if r.StatusCode != http.StatusOK {
		t.Errorf("query with token: got %d", r.StatusCode)
	}
	if r.Header.Get(requestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
	if r := do(http.MethodGet, "/api/query", "", "secret"); r.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/query: got %d", r.StatusCode)
	}
	if r := do(http.MethodGet, "/metrics", "", ""); r.StatusCode != http.StatusOK {
		t.Errorf("metrics: got %d", r.StatusCode)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.calls != 1 {
		t.Errorf("querier calls: got %d, want 1", q.calls)
	}
}

// ---------------------------------------------------------------------------
// Middleware helpers
// ---------------------------------------------------------------------------

func TestRequestLogger_ReusesValidID(t *testing.T) {
	t.Parallel()

	h := requestLogger(logging.Discard(), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "client-req-0001")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "client-req-0001" {
		t.Errorf("expected inbound ID to be reused, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "bad id with spaces")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	got := w.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("expected a fresh UUID request ID, got %q", got)
	}
}
