package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
)

// RouterConfig configures the middleware chain.
type RouterConfig struct {
	Logger *zap.Logger
	// Limiter guards the pipeline routes (/chat, /climate). nil disables it.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter wires every route onto a mux router. Catalog and culture reads are
// served from memory and skip the rate limiter; routes that may reach an
// upstream share the limiter and the request timeout.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.GetIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/products", h.GetProducts).Methods(http.MethodGet)
	router.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	router.HandleFunc("/categories", h.GetCategories).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/culture/{destination}", h.GetCulture).Methods(http.MethodGet)

	pipeline := router.NewRoute().Subrouter()
	pipeline.Use(RateLimitMiddleware(cfg.Limiter))
	pipeline.Use(TimeoutMiddleware(cfg.RequestTimeout))
	pipeline.HandleFunc("/chat", h.PostChat).Methods(http.MethodPost)
	pipeline.HandleFunc("/climate/{city}", h.GetClimate).Methods(http.MethodGet)

	if len(cfg.CORSOrigins) == 0 {
		return router
	}
	return CORSMiddleware(cfg.CORSOrigins)(router)
}
