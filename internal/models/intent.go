package models

import "time"

// Intent sources recorded in Intent.Source.
const (
	IntentSourceGenAI = "genai"
	IntentSourceRules = "rules"
)

// Activities recognised by the parser and the taboo rules.
const (
	ActivityGeneral       = "general"
	ActivityBeach         = "beach"
	ActivityHiking        = "hiking"
	ActivityBusiness      = "business"
	ActivityReligiousSite = "religious_sites"
	ActivityWedding       = "wedding"
	ActivitySightseeing   = "sightseeing"
)

// Intent is the structured travel intent extracted from a free-text query.
type Intent struct {
	Destination     string     `json:"destination"`
	City            string     `json:"city,omitempty"`
	Country         string     `json:"country,omitempty"`
	Month           time.Month `json:"month,omitempty"` // 0 when unspecified
	Year            int        `json:"year,omitempty"`
	Season          string     `json:"season,omitempty"`
	Activity        string     `json:"activity"`
	Category        string     `json:"category"`
	TravelPurpose   string     `json:"travelPurpose"`
	CulturalEvent   string     `json:"culturalEvent,omitempty"`
	BudgetMentioned bool       `json:"budgetMentioned"`
	Urgency         string     `json:"urgency"`
	WeatherConcern  bool       `json:"weatherConcern"`
	Confidence      float64    `json:"confidence"`
	Source          string     `json:"source"`
	FallbackReason  string     `json:"fallbackReason,omitempty"` // set when the rule parser stood in for the model
	OriginalQuery   string     `json:"originalQuery"`
}

// HasDestination reports whether any destination component was extracted.
func (i Intent) HasDestination() bool {
	return i.City != "" || i.Country != "" || (i.Destination != "" && i.Destination != "unspecified")
}
