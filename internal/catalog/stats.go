package catalog

import (
	"sort"
	"strings"
)

var categoryDescriptions = map[string]string{
	"clothing":                   "Apparel and garments for all climates",
	"accessories":                "Supplementary items like bags, jewelry, headwear",
	"footwear":                   "Shoes, sandals, boots for different terrains",
	"swimwear":                   "Beach and water activity clothing",
	"gifts":                      "Items suitable for cultural gifting",
	"electronics":                "Travel-friendly tech devices",
	"beauty":                     "Personal care and cosmetic products",
	"home":                       "Decorative and functional home items",
	"outdoor":                    "Equipment for outdoor activities",
	"books":                      "Educational and cultural reading materials",
	"bags":                       "Luggage and everyday carry",
	"modest":                     "Culturally appropriate conservative clothing",
	"traditional":                "Items reflecting local cultural heritage",
	"conservative":               "Suitable for strict dress codes",
	"hot":                        "Appropriate for high temperature climates",
	"cold":                       "Suitable for low temperature environments",
	"inappropriate-conservative": "Items that may be filtered for conservative destinations",
}

// CategoryInfo is one tag with its usage count.
type CategoryInfo struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

// Categories returns every tag in the catalog, sorted by name.
func (c *Catalog) Categories() []CategoryInfo {
	counts := make(map[string]int)
	for _, p := range c.products {
		for _, t := range p.Tags {
			counts[t]++
		}
	}
	out := make([]CategoryInfo, 0, len(counts))
	for name, n := range counts {
		desc, ok := categoryDescriptions[name]
		if !ok {
			desc = "Product category"
		}
		out = append(out, CategoryInfo{Name: name, Count: n, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats summarises the catalog by tag, price band, cultural and climate class.
type Stats struct {
	TotalProducts      int            `json:"totalProducts"`
	Categories         map[string]int `json:"categories"`
	PriceRanges        map[string]int `json:"priceRanges"`
	CulturalCategories map[string]int `json:"culturalCategories"`
	ClimateCategories  map[string]int `json:"climateCategories"`
}

// Stats computes catalog statistics. Price bands use whole units:
// under_50, 50_100, 100_200, over_200.
func (c *Catalog) Stats() Stats {
	s := Stats{
		TotalProducts:      len(c.products),
		Categories:         make(map[string]int),
		PriceRanges:        map[string]int{"under_50": 0, "50_100": 0, "100_200": 0, "over_200": 0},
		CulturalCategories: map[string]int{"modest": 0, "traditional": 0, "inappropriate": 0},
		ClimateCategories:  map[string]int{"hot": 0, "cold": 0, "mild": 0, "all-weather": 0},
	}
	for _, p := range c.products {
		for _, t := range p.Tags {
			s.Categories[t]++
		}
		switch units := p.Price.Units; {
		case units < 50:
			s.PriceRanges["under_50"]++
		case units < 100:
			s.PriceRanges["50_100"]++
		case units < 200:
			s.PriceRanges["100_200"]++
		default:
			s.PriceRanges["over_200"]++
		}
		if anyTagContains(p.Tags, "modest", "conservative") {
			s.CulturalCategories["modest"]++
		}
		if anyTagContains(p.Tags, "traditional") {
			s.CulturalCategories["traditional"]++
		}
		if anyTagContains(p.Tags, "inappropriate") {
			s.CulturalCategories["inappropriate"]++
		}
		if anyTagContains(p.Tags, "hot", "summer", "tropical") {
			s.ClimateCategories["hot"]++
		}
		if anyTagContains(p.Tags, "cold", "winter") {
			s.ClimateCategories["cold"]++
		}
		if anyTagContains(p.Tags, "mild") {
			s.ClimateCategories["mild"]++
		}
		if anyTagContains(p.Tags, "all-weather") {
			s.ClimateCategories["all-weather"]++
		}
	}
	return s
}

func anyTagContains(tags []string, fragments ...string) bool {
	for _, t := range tags {
		for _, f := range fragments {
			if strings.Contains(t, f) {
				return true
			}
		}
	}
	return false
}
