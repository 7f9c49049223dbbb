package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
	"github.com/kjstillabower/travel-wardrobe-service/internal/traffic"
)

// TestCorrelationIDMiddleware covers minted, propagated and oversized IDs and
// the request-scoped logger.
func TestCorrelationIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "minted", header: ""},
		{name: "propagated", header: "client-provided-id", wantSame: true},
		{name: "oversized replaced", header: strings.Repeat("x", maxCorrelationIDLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.InfoLevel)
			var ctxID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = observability.CorrelationIDFromContext(r.Context())
				observability.LoggerFromContext(r.Context()).Info("inside")
			})
			handler := CorrelationIDMiddleware(zap.New(core))(next)
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set(CorrelationIDHeader, tt.header)
			}
			w := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(w, req)

			// Assert
			got := w.Header().Get(CorrelationIDHeader)
			if got == "" || got != ctxID {
				t.Fatalf("header = %q, context = %q, want equal and non-empty", got, ctxID)
			}
			if tt.wantSame && got != tt.header {
				t.Errorf("header = %q, want %q", got, tt.header)
			}
			if !tt.wantSame && got == tt.header {
				t.Errorf("header = %q, want a fresh ID", got)
			}
			entries := logs.All()
			if len(entries) != 1 || entries[0].ContextMap()["correlation_id"] != got {
				t.Errorf("log entries = %+v, want one with correlation_id %q", entries, got)
			}
		})
	}
}

// TestRouter_MetricsUseRouteTemplate verifies path variables collapse into
// the route template label.
func TestRouter_MetricsUseRouteTemplate(t *testing.T) {
	h := newTestHandler(t, HandlerDeps{})
	router := NewRouter(h, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/NOPE_404", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	mw := httptest.NewRecorder()
	observability.MetricsHandler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `httpRequestsTotal{method="GET",route="/products/{id}",statusCode="4xx"}`
	if !strings.Contains(mw.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
	if strings.Contains(mw.Body.String(), `route="/products/NOPE_404"`) {
		t.Error("metrics carry the raw path")
	}
}

// TestGetRoute_Unmatched verifies requests outside the router get a fixed label.
func TestGetRoute_Unmatched(t *testing.T) {
	if got := getRoute(httptest.NewRequest(http.MethodGet, "/nope", nil)); got != "unmatched" {
		t.Errorf("getRoute() = %q, want unmatched", got)
	}
}

// TestStatusRecorder_FirstWriteWins verifies a second WriteHeader does not
// change the recorded status.
func TestStatusRecorder_FirstWriteWins(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rec.WriteHeader(http.StatusTooManyRequests)
	rec.WriteHeader(http.StatusOK)
	if rec.statusCode != http.StatusTooManyRequests {
		t.Errorf("statusCode = %d, want 429", rec.statusCode)
	}
	if statusCodeString(rec.statusCode) != "4xx" {
		t.Errorf("statusCodeString = %q", statusCodeString(rec.statusCode))
	}
}

// TestRouter_RateLimit verifies the pipeline routes share the limiter while
// catalog reads bypass it, and denials reach the traffic tracker.
func TestRouter_RateLimit(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	climates := &fakeClimates{rec: karachiRecord()}
	h := newTestHandler(t, HandlerDeps{Climates: climates})
	router := NewRouter(h, RouterConfig{Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/climate/Karachi", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"Goa"}`)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	var body errorBody
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "RATE_LIMITED" || body.Error.RequestID == "" {
		t.Errorf("error = %+v, want RATE_LIMITED with requestId", body.Error)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if n := traffic.DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount() = %d, want 1", n)
	}

	catalogRead := httptest.NewRecorder()
	router.ServeHTTP(catalogRead, httptest.NewRequest(http.MethodGet, "/products?limit=1", nil))
	if catalogRead.Code != http.StatusOK {
		t.Errorf("catalog status = %d, want 200 (not rate limited)", catalogRead.Code)
	}
}

// TestRateLimitMiddleware_NilLimiter verifies a nil limiter passes everything.
func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	calls := 0
	handler := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

// TestTimeoutMiddleware verifies a deadline is attached only when configured.
func TestTimeoutMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		timeout      time.Duration
		wantDeadline bool
	}{
		{"configured", 50 * time.Millisecond, true},
		{"disabled", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hasDeadline bool
			handler := TimeoutMiddleware(tt.timeout)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, hasDeadline = r.Context().Deadline()
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			if hasDeadline != tt.wantDeadline {
				t.Errorf("deadline set = %v, want %v", hasDeadline, tt.wantDeadline)
			}
		})
	}
}

// TestRouter_ChatTimeout verifies an expired request deadline maps to 504.
func TestRouter_ChatTimeout(t *testing.T) {
	traffic.Reset()
	defer traffic.Reset()
	h := newTestHandler(t, HandlerDeps{Recommender: blockingRecommender{}})
	router := NewRouter(h, RouterConfig{RequestTimeout: 10 * time.Millisecond})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"Goa"}`)))

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", w.Code)
	}
}

// TestCORSMiddleware covers allowed, wildcard and rejected origins and preflight.
func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
	}{
		{name: "listed origin", allowed: []string{"https://shop.example.com/"}, origin: "https://shop.example.com", wantOrigin: "https://shop.example.com", wantStatus: 200},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://any.example", wantOrigin: "*", wantStatus: 200},
		{name: "unlisted origin", allowed: []string{"https://shop.example.com"}, origin: "https://evil.example", wantOrigin: "", wantStatus: 200},
		{name: "preflight", allowed: []string{"https://shop.example.com"}, origin: "https://shop.example.com", preflight: true, wantOrigin: "https://shop.example.com", wantStatus: 204},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, HandlerDeps{})
			router := NewRouter(h, RouterConfig{CORSOrigins: tt.allowed})
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/stats", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.preflight && !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
				t.Errorf("Allow-Methods = %q, want POST listed", w.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

// TestRouter_MethodNotAllowed verifies GET /chat is rejected by the router.
func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, HandlerDeps{})
	router := NewRouter(h, RouterConfig{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

// blockingRecommender waits for the request context to end.
type blockingRecommender struct{}

func (blockingRecommender) Recommend(ctx context.Context, query string) (models.Recommendation, error) {
	<-ctx.Done()
	return models.Recommendation{}, ctx.Err()
}
