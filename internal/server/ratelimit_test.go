package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// okHandler is the downstream handler for middleware tests.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.5, 3, nil)
	defer stop()
	h := rl.middleware(okHandler)

	for i := range 3 {
		if w := hit(h, "10.0.0.1:9999"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i, w.Code)
		}
	}

	w := hit(h, "10.0.0.1:9999")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", w.Code)
	}
	// One token every two seconds.
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 2 {
		t.Errorf("Retry-After = %q, want 1 or 2", w.Header().Get("Retry-After"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRateLimit_RejectionDoesNotConsume(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, nil)
	defer stop()

	base := time.Unix(1_700_000_000, 0)
	now := base
	rl.now = func() time.Time { return now }

	if ok, _ := rl.reserve("a"); !ok {
		t.Fatal("first request rejected")
	}
	for range 5 {
		if ok, _ := rl.reserve("a"); ok {
			t.Fatal("over-budget request allowed")
		}
	}
	// Rejected attempts were cancelled, so one second later a token exists.
	now = base.Add(time.Second)
	if ok, wait := rl.reserve("a"); !ok {
		t.Errorf("request after refill rejected, wait %v", wait)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 1, nil)
	defer stop()
	h := rl.middleware(okHandler)

	for range 3 {
		hit(h, "192.168.1.1:1111")
	}
	if w := hit(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second client: status %d, want 200", w.Code)
	}
}

func TestRateLimit_SweepDropsIdleBuckets(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, nil)
	defer stop()

	base := time.Unix(1_700_000_000, 0)
	now := base
	rl.now = func() time.Time { return now }

	rl.reserve("old")
	now = base.Add(bucketIdleTTL - time.Second)
	rl.reserve("fresh")
	now = base.Add(bucketIdleTTL + time.Second)
	rl.sweep()

	if n := rl.size(); n != 1 {
		t.Errorf("buckets after sweep = %d, want 1", n)
	}
}

func TestRateLimit_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	_, stop := newRateLimiter(1, 1, nil)
	stop()
	stop()
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := []struct {
		remoteAddr string
		wantIP     string
	}{
		{"127.0.0.1:54321", "127.0.0.1"},
		{"[::1]:8080", "::1"},
		{"noport", "noport"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		if got := clientIP(req); got != tc.wantIP {
			t.Errorf("clientIP(%q) = %q, want %q", tc.remoteAddr, got, tc.wantIP)
		}
	}
}
