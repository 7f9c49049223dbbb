package catalog

import (
	"fmt"
	"strings"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// ClimateKeywords maps a climate filter value to the tag fragments it matches.
var ClimateKeywords = map[string][]string{
	"hot":      {"hot", "summer", "tropical", "desert"},
	"cold":     {"cold", "winter", "thermal"},
	"mild":     {"mild", "spring", "autumn"},
	"desert":   {"desert", "sand", "dry"},
	"tropical": {"tropical", "humid"},
	"mountain": {"mountain", "hiking", "altitude"},
}

// CulturalKeywords maps a cultural filter value to the tag fragments it matches.
var CulturalKeywords = map[string][]string{
	"conservative": {"conservative", "modest", "covered"},
	"modest":       {"modest", "conservative", "respectful"},
	"traditional":  {"traditional", "cultural", "authentic"},
	"religious":    {"religious", "spiritual", "respectful"},
	"business":     {"business", "professional", "formal"},
}

// Query selects products. Zero values disable the corresponding filter;
// PriceMax <= 0 means no upper bound.
type Query struct {
	Category             string
	Search               string
	Climate              string
	Cultural             string
	PriceMin             float64
	PriceMax             float64
	ExcludeInappropriate bool
	Limit                int
}

// Applied lists the active filters as "name:value" labels.
func (q Query) Applied() []string {
	var out []string
	if q.Category != "" {
		out = append(out, "category:"+q.normalized(q.Category))
	}
	if q.Search != "" {
		out = append(out, "search:"+q.normalized(q.Search))
	}
	if q.Climate != "" {
		out = append(out, "climate:"+q.normalized(q.Climate))
	}
	if q.Cultural != "" {
		out = append(out, "cultural:"+q.normalized(q.Cultural))
	}
	if q.ExcludeInappropriate {
		out = append(out, "exclude_inappropriate:true")
	}
	if q.PriceMin > 0 {
		out = append(out, fmt.Sprintf("price_min:%g", q.PriceMin))
	}
	if q.PriceMax > 0 {
		out = append(out, fmt.Sprintf("price_max:%g", q.PriceMax))
	}
	return out
}

func (Query) normalized(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Filter returns the products matching q in catalog order. Matching is by
// substring on lowercased tags, so "mountain" also matches "mountains".
// Unknown climate or cultural keys leave the set unfiltered.
func (c *Catalog) Filter(q Query) []models.Product {
	category := q.normalized(q.Category)
	search := q.normalized(q.Search)
	climate := ClimateKeywords[q.normalized(q.Climate)]
	cultural := CulturalKeywords[q.normalized(q.Cultural)]

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if category != "" && !tagContains(p, category) {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		price := float64(p.Price.Units)
		if price < q.PriceMin || (q.PriceMax > 0 && price > q.PriceMax) {
			continue
		}
		if climate != nil && !MatchesAny(p, climate) {
			continue
		}
		if cultural != nil && !MatchesAny(p, cultural) {
			continue
		}
		if q.ExcludeInappropriate && IsInappropriate(p) {
			continue
		}
		out = append(out, p)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// MatchesAny reports whether any tag of p contains any of the keywords.
func MatchesAny(p models.Product, keywords []string) bool {
	for _, kw := range keywords {
		if tagContains(p, kw) {
			return true
		}
	}
	return false
}

func tagContains(p models.Product, fragment string) bool {
	for _, t := range p.Tags {
		if strings.Contains(t, fragment) {
			return true
		}
	}
	return false
}

func matchesSearch(p models.Product, search string) bool {
	return strings.Contains(strings.ToLower(p.Name), search) ||
		strings.Contains(strings.ToLower(p.Description), search) ||
		tagContains(p, search)
}
