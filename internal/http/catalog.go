package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/catalog"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
)

// maxProductLimit caps the limit query parameter.
const maxProductLimit = 500

type productListMetadata struct {
	TotalResults   int      `json:"totalResults"`
	TotalCatalog   int      `json:"totalCatalog"`
	FiltersApplied []string `json:"filtersApplied"`
	Timestamp      string   `json:"timestamp"`
}

type productListResponse struct {
	Products []models.Product    `json:"products"`
	Metadata productListMetadata `json:"metadata"`
}

type productDetailMetadata struct {
	CulturalAppropriateness string   `json:"culturalAppropriateness"`
	ClimateSuitability      []string `json:"climateSuitability"`
	TargetDemographics      []string `json:"targetDemographics"`
	FetchedAt               string   `json:"fetchedAt"`
}

type productDetailResponse struct {
	models.Product
	Metadata productDetailMetadata `json:"metadata"`
}

var (
	climateSuitabilityTags = map[string]bool{"hot": true, "cold": true, "mild": true, "tropical": true, "desert": true}
	demographicTags        = map[string]bool{"men": true, "women": true, "unisex": true, "children": true}
)

// GetProducts handles GET /products with catalog filters as query parameters.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	q, err := parseProductQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	products := h.catalog.Filter(q)
	applied := q.Applied()
	if applied == nil {
		applied = []string{}
	}
	observability.LoggerFromContext(r.Context()).Debug("products listed",
		zap.Int("count", len(products)), zap.Strings("filters", applied))

	if r.URL.Query().Get("simple") != "" {
		writeJSON(w, http.StatusOK, products)
		return
	}
	writeJSON(w, http.StatusOK, productListResponse{
		Products: products,
		Metadata: productListMetadata{
			TotalResults:   len(products),
			TotalCatalog:   h.catalog.Len(),
			FiltersApplied: applied,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		},
	})
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseProductQuery(r *http.Request) (catalog.Query, error) {
	v := r.URL.Query()
	q := catalog.Query{
		Category:             v.Get("category"),
		Search:               v.Get("search"),
		Climate:              v.Get("climate"),
		Cultural:             v.Get("cultural"),
		ExcludeInappropriate: strings.EqualFold(v.Get("exclude_inappropriate"), "true"),
	}
	var err error
	if q.PriceMin, err = parsePrice(v.Get("price_min")); err != nil {
		return q, filterError("price_min must be a non-negative number")
	}
	if q.PriceMax, err = parsePrice(v.Get("price_max")); err != nil {
		return q, filterError("price_max must be a non-negative number")
	}
	if q.PriceMax > 0 && q.PriceMin > q.PriceMax {
		return q, filterError("price_min must not exceed price_max")
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, filterError("limit must be a non-negative integer")
		}
		q.Limit = min(n, maxProductLimit)
	}
	return q, nil
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, filterError("invalid price")
	}
	return f, nil
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	p, ok := h.catalog.ByID(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found: "+id)
		return
	}
	appropriateness := "appropriate"
	if catalog.IsInappropriate(p) {
		appropriateness = "requires_filtering"
	}
	writeJSON(w, http.StatusOK, productDetailResponse{
		Product: p,
		Metadata: productDetailMetadata{
			CulturalAppropriateness: appropriateness,
			ClimateSuitability:      pickTags(p.Tags, climateSuitabilityTags),
			TargetDemographics:      pickTags(p.Tags, demographicTags),
			FetchedAt:               time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func pickTags(tags []string, allowed map[string]bool) []string {
	out := []string{}
	for _, t := range tags {
		if allowed[t] {
			out = append(out, t)
		}
	}
	return out
}

// GetCategories handles GET /categories.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	cats := h.catalog.Categories()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": cats,
		"total":      len(cats),
	})
}

// GetStats handles GET /stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Stats())
}
