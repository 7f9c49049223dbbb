package models

import "time"

// ScoredProduct is a catalog item selected for the traveller.
type ScoredProduct struct {
	Product
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ExcludedProduct records an item removed by a cultural taboo rule.
type ExcludedProduct struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rule        string   `json:"rule"`
	Level       string   `json:"level"` // region, country or city
	Reason      string   `json:"reason"`
	Substitutes []string `json:"substitutes,omitempty"`
}

// FestivalMatch is a festival that falls in the travel month.
type FestivalMatch struct {
	Name              string   `json:"name"`
	When              string   `json:"when"`
	Significance      string   `json:"significance"`
	ShoppingRelevance string   `json:"shoppingRelevance"`
	Tags              []string `json:"tags,omitempty"`
}

// ClimateSummary is the climate context shown to the traveller.
type ClimateSummary struct {
	City    string          `json:"city,omitempty"`
	Month   string          `json:"month,omitempty"`
	Band    ClimateBand     `json:"band,omitempty"`
	HighC   float64         `json:"highC,omitempty"`
	LowC    float64         `json:"lowC,omitempty"`
	Source  string          `json:"source,omitempty"`
	Stale   bool            `json:"stale,omitempty"`
	Summary string          `json:"summary"`
	Current *CurrentWeather `json:"current,omitempty"`
}

// CulturalSummary is the cultural context shown to the traveller.
type CulturalSummary struct {
	Destination      string            `json:"destination"`
	ClothingNorms    map[string]string `json:"clothingNorms,omitempty"`
	GiftCulture      string            `json:"giftCulture,omitempty"`
	SensitivityFlags []string          `json:"sensitivityFlags,omitempty"`
	Note             string            `json:"note,omitempty"`
}

// RecommendationMetadata describes how the answer was produced.
type RecommendationMetadata struct {
	ProcessedAt   time.Time `json:"queryProcessedAt"`
	Intent        Intent    `json:"intent"`
	ProductsCount int       `json:"productsCount"`
	AIGenerated   bool      `json:"aiGenerated"`
	Fallbacks     []string  `json:"fallbacks,omitempty"`
}

// Recommendation is the response body for one chat message.
type Recommendation struct {
	Message     string                 `json:"message"`
	Explanation string                 `json:"explanation"`
	Products    []ScoredProduct        `json:"products"`
	Excluded    []ExcludedProduct      `json:"excluded,omitempty"`
	Festivals   []FestivalMatch        `json:"festivals,omitempty"`
	Climate     ClimateSummary         `json:"climate"`
	Culture     CulturalSummary        `json:"culture"`
	TravelTips  []string               `json:"travelTips"`
	Metadata    RecommendationMetadata `json:"metadata"`
}
