package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/catalog"
	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	"github.com/kjstillabower/travel-wardrobe-service/internal/intent"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
	"github.com/kjstillabower/travel-wardrobe-service/internal/service"
	"github.com/kjstillabower/travel-wardrobe-service/internal/traffic"
	"github.com/kjstillabower/travel-wardrobe-service/internal/validation"
)

// maxChatBodyBytes bounds the POST /chat request body.
const maxChatBodyBytes = 64 << 10

// Recommender answers one chat message.
type Recommender interface {
	Recommend(ctx context.Context, query string) (models.Recommendation, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	recommender      Recommender
	catalog          *catalog.Catalog
	cultures         *culture.Table
	climates         service.ClimateProvider
	healthConfig     *HealthConfig
	logger           *zap.Logger
	queryMaxLength   int
	nameMinLength    int
	nameMaxLength    int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// HandlerDeps groups the collaborators NewHandler wires together.
type HandlerDeps struct {
	Recommender Recommender
	Catalog     *catalog.Catalog
	Cultures    *culture.Table
	Climates    service.ClimateProvider
	Health      *HealthConfig
	Logger      *zap.Logger
	// QueryMaxLength bounds chat queries in runes; 0 means unbounded.
	QueryMaxLength int
	// NameMinLength and NameMaxLength bound city and destination path values.
	NameMinLength int
	NameMaxLength int
}

// NewHandler returns a new Handler.
func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.NameMaxLength <= 0 {
		deps.NameMaxLength = 100
	}
	return &Handler{
		nameMinLength:  deps.NameMinLength,
		nameMaxLength:  deps.NameMaxLength,
		recommender:    deps.Recommender,
		catalog:        deps.Catalog,
		cultures:       deps.Cultures,
		climates:       deps.Climates,
		healthConfig:   deps.Health,
		logger:         logger,
		queryMaxLength: deps.QueryMaxLength,
	}
}

type chatRequest struct {
	Query string `json:"query"`
}

// PostChat handles POST /chat.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "request body must be JSON with a query field")
		return
	}
	query, err := validation.ValidateQuery(body.Query, h.queryMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", validationMessage(err))
		return
	}

	rec, err := h.recommender.Recommend(r.Context(), query)
	if err != nil {
		if errors.Is(err, intent.ErrEmptyQuery) {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "query is required")
			return
		}
		traffic.Record(traffic.OutcomeError)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "recommendation took too long")
			return
		}
		observability.LoggerFromContext(r.Context()).Error("recommendation failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "unable to build recommendation")
		return
	}
	if len(rec.Metadata.Fallbacks) > 0 {
		traffic.Record(traffic.OutcomeDegraded)
	} else {
		traffic.Record(traffic.OutcomeSuccess)
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetIndex handles GET /.
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":  observability.ServiceName,
		"version":  "dev",
		"products": h.catalog.Len(),
		"endpoints": map[string]string{
			"chat":       "POST /chat",
			"health":     "GET /health",
			"metrics":    "GET /metrics",
			"products":   "GET /products",
			"product":    "GET /products/{id}",
			"categories": "GET /categories",
			"stats":      "GET /stats",
			"climate":    "GET /climate/{city}",
			"culture":    "GET /culture/{destination}",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the cause at debug.
func writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", message)
	observability.LoggerFromContext(r.Context()).Debug("upstream error", zap.Error(err))
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, validation.ErrQueryEmpty), errors.Is(err, validation.ErrNameEmpty):
		return "value is required"
	case errors.Is(err, validation.ErrQueryTooLong), errors.Is(err, validation.ErrNameTooLong):
		return "value is too long"
	case errors.Is(err, validation.ErrNameTooShort):
		return "value is too short"
	default:
		return "value contains invalid characters"
	}
}
