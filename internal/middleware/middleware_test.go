package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := chimw.RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})))

	req := httptest.NewRequest("POST", "/cart/items", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)

	logged := buf.String()
	for _, check := range []string{"method=POST", "path=/cart/items", "status=303", "request_id="} {
		assert.Contains(t, logged, check)
	}
	assert.NotContains(t, logged, `request_id=""`, "request id not propagated")
	assert.NotContains(t, logged, "request_id= ", "request id not propagated")
}

func TestLoggingDefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	assert.Contains(t, buf.String(), "status=200")
}

func TestLoggingServerErrorIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/cart", nil))

	assert.Contains(t, buf.String(), "level=WARN", "502 logs at WARN")
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	logged := buf.String()
	assert.Contains(t, logged, "panic recovered")
	assert.Contains(t, logged, "test panic")
}

func TestRecoveryAfterHeadersSent(t *testing.T) {
	handler := Recovery(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic("late panic")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/late", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Internal Server Error", "body written after headers")
}

func TestRecoveryNoPanic(t *testing.T) {
	handler := Recovery(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestResponseWriterMultipleWriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

	rw.WriteHeader(http.StatusSeeOther)
	rw.WriteHeader(http.StatusNotFound)

	assert.Equal(t, http.StatusSeeOther, rw.status)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestFetchSite(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"same-origin", "same-origin", false},
		{" cross-site ", "cross-site", false},
		{"none", "none", false},
		{`"same-origin"`, "", true},
		{"same-origin, none", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := FetchSite(tt.header)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCrossSite(t *testing.T) {
	handler := CrossSite(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	tests := []struct {
		name      string
		method    string
		fetchSite string
		origin    string
		want      int
	}{
		{"get cross-site", "GET", "cross-site", "", http.StatusSeeOther},
		{"post same-origin", "POST", "same-origin", "", http.StatusSeeOther},
		{"post user-initiated", "POST", "none", "", http.StatusSeeOther},
		{"post cross-site", "POST", "cross-site", "", http.StatusForbidden},
		{"post same-site", "POST", "same-site", "", http.StatusForbidden},
		{"post malformed", "POST", `"x"`, "", http.StatusForbidden},
		{"post no headers", "POST", "", "", http.StatusSeeOther},
		{"post matching origin", "POST", "", "http://shop.example", http.StatusSeeOther},
		{"post foreign origin", "POST", "", "https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://shop.example/cart/items", nil)
			if tt.fetchSite != "" {
				req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

type throttleCounter struct{ n int }

func (c *throttleCounter) LoginThrottled() { c.n++ }

func TestRateLimiter(t *testing.T) {
	counter := &throttleCounter{}
	rl := NewRateLimiter(2, discard(), counter)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	post := func(remote string) int {
		req := httptest.NewRequest("POST", "/admin/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusSeeOther, post("10.0.0.1:1234"), "attempt %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:5678"))
	assert.Equal(t, http.StatusSeeOther, post("10.0.0.2:1234"), "other client")
	assert.Equal(t, 1, counter.n)

	now = now.Add(31 * time.Second)
	assert.Equal(t, http.StatusSeeOther, post("10.0.0.1:1234"), "after refill")
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(5, discard(), nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(10 * time.Minute)
	rl.Allow("b")

	assert.Equal(t, 1, rl.Sweep(5*time.Minute))
	assert.Contains(t, rl.clients, "b", "recent client kept")
}

type fakeHTTPObserver struct {
	inflight int
	peak     int
	route    string
	status   int
}

func (f *fakeHTTPObserver) TrackInFlight() func() {
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	return func() { f.inflight-- }
}

func (f *fakeHTTPObserver) ObserveHTTP(method, route string, status int, d time.Duration) {
	f.route = route
	f.status = status
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	obs := &fakeHTTPObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Get("/orders/{orderNo}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orders/ORD-1001", nil))

	assert.Equal(t, "/orders/{orderNo}", obs.route)
	assert.Equal(t, http.StatusNotFound, obs.status)
	assert.Equal(t, 1, obs.peak)
	assert.Equal(t, 0, obs.inflight)
}
