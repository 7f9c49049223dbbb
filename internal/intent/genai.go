package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// ErrNoCredentials is returned when no Gemini API key is configured.
var ErrNoCredentials = errors.New("genai: no API key configured")

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

const intentPrompt = `Analyze this travel shopping query and extract structured information.

Query: %q

Return ONLY a JSON object with these fields:
{
  "destination": "main destination mentioned (city or country), or null",
  "city": "specific city mentioned, or null",
  "country": "country mentioned or inferred from the city, or null",
  "month": "travel month as a number 1-12, or 0 if not stated",
  "year": "travel year if stated, or 0",
  "season": "winter/spring/summer/autumn/monsoon if stated instead of a month, or null",
  "activity": "general/beach/hiking/business/religious_sites/wedding/sightseeing",
  "category": "clothing/accessories/gifts/electronics/beauty/home",
  "travel_purpose": "vacation/business/visiting_family/cultural_event/other",
  "budget_mentioned": true or false,
  "urgency": "immediate/soon/flexible",
  "cultural_event": "festival or event mentioned, or null",
  "weather_concern": true or false,
  "confidence": 0.0-1.0
}

Examples:
- "What to pack for Karachi Pakistan in January?" -> {"destination": "Karachi, Pakistan", "city": "Karachi", "country": "Pakistan", "month": 1, "category": "clothing", "weather_concern": true}
- "Eid gifts for Dubai trip" -> {"destination": "Dubai", "city": "Dubai", "country": "United Arab Emirates", "category": "gifts", "cultural_event": "Eid"}
- "Summer clothes for Turkey" -> {"destination": "Turkey", "country": "Turkey", "season": "summer", "category": "clothing"}
- "Beach outfits for Goa" -> {"destination": "Goa, India", "city": "Goa", "country": "India", "activity": "beach"}`

// contentGenerator is the part of *genai.Models the parser uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIParser asks a Gemini model for the intent as JSON.
type GenAIParser struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewGenAIParser creates a Gemini-backed parser. An empty apiKey returns ErrNoCredentials.
func NewGenAIParser(ctx context.Context, apiKey, model string, timeout time.Duration) (*GenAIParser, error) {
	if apiKey == "" {
		return nil, ErrNoCredentials
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGenAIParser(client.Models, model, timeout), nil
}

func newGenAIParser(models contentGenerator, model string, timeout time.Duration) *GenAIParser {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GenAIParser{models: models, model: model, timeout: timeout}
}

// Parse implements Parser.
func (p *GenAIParser) Parse(ctx context.Context, query string) (models.Intent, error) {
	if strings.TrimSpace(query) == "" {
		return models.Intent{}, ErrEmptyQuery
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText(fmt.Sprintf(intentPrompt, query), genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return models.Intent{}, fmt.Errorf("genai generate: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return models.Intent{}, fmt.Errorf("genai: empty response")
	}

	var out modelIntent
	if err := json.Unmarshal([]byte(extractJSON(text)), &out); err != nil {
		return models.Intent{}, fmt.Errorf("parse genai response: %w", err)
	}

	in := out.toIntent()
	in.Source = models.IntentSourceGenAI
	return Normalize(in, query), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

// extractJSON strips code fences and any prose around the outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// modelIntent is the JSON shape requested from the model.
type modelIntent struct {
	Destination     string    `json:"destination"`
	City            string    `json:"city"`
	Country         string    `json:"country"`
	Month           flexMonth `json:"month"`
	Year            flexInt   `json:"year"`
	Season          string    `json:"season"`
	Activity        string    `json:"activity"`
	Category        string    `json:"category"`
	TravelPurpose   string    `json:"travel_purpose"`
	BudgetMentioned bool      `json:"budget_mentioned"`
	Urgency         string    `json:"urgency"`
	CulturalEvent   string    `json:"cultural_event"`
	WeatherConcern  bool      `json:"weather_concern"`
	Confidence      float64   `json:"confidence"`
}

func (m modelIntent) toIntent() models.Intent {
	return models.Intent{
		Destination:     m.Destination,
		City:            m.City,
		Country:         m.Country,
		Month:           time.Month(m.Month),
		Year:            int(m.Year),
		Season:          m.Season,
		Activity:        m.Activity,
		Category:        m.Category,
		TravelPurpose:   m.TravelPurpose,
		BudgetMentioned: m.BudgetMentioned,
		Urgency:         m.Urgency,
		CulturalEvent:   m.CulturalEvent,
		WeatherConcern:  m.WeatherConcern,
		Confidence:      m.Confidence,
	}
}

// flexMonth accepts 3, "3", "March" or "Mar". Anything else decodes as 0.
type flexMonth int

func (f *flexMonth) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexMonth(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		*f = flexMonth(n)
		return nil
	}
	m, _ := ParseMonth(s)
	*f = flexMonth(m)
	return nil
}

// flexInt accepts a number or a numeric string. Anything else decodes as 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		n, _ = strconv.Atoi(strings.TrimSpace(s))
	}
	*f = flexInt(n)
	return nil
}
