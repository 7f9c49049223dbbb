package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjstillabower/travel-wardrobe-service/internal/circuitbreaker"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

const upstreamWikipedia = "wikipedia"

// DefaultWikipediaURL is the REST base for English Wikipedia.
const DefaultWikipediaURL = "https://en.wikipedia.org/api/rest_v1"

// ClimateFetcher returns the monthly climate table for a city.
type ClimateFetcher interface {
	FetchClimate(ctx context.Context, city string) (models.ClimateRecord, error)
}

// WikipediaConfig configures a WikipediaClient.
type WikipediaConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Retry     RetryPolicy
	// Breaker is optional. Not-found and missing-table results do not count as failures.
	Breaker *circuitbreaker.CircuitBreaker
}

// WikipediaClient scrapes the "Climate data for" table from a city's article.
type WikipediaClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
	retry     RetryPolicy
	breaker   *circuitbreaker.CircuitBreaker
	now       func() time.Time
}

// NewWikipediaClient returns a client for the Wikipedia REST API. Empty
// BaseURL and UserAgent take defaults; a nil Breaker disables breaking.
func NewWikipediaClient(cfg WikipediaConfig) *WikipediaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultWikipediaURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "travel-wardrobe-service/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &WikipediaClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		client:    &http.Client{Timeout: cfg.Timeout},
		retry:     cfg.Retry.withDefaults(),
		breaker:   cfg.Breaker,
		now:       time.Now,
	}
}

// IsBreakerFailure reports whether err should count against the Wikipedia
// circuit breaker. Missing articles and tables are answers, not outages.
func IsBreakerFailure(err error) bool {
	return !errors.Is(err, ErrCityNotFound) && !errors.Is(err, ErrNoClimateTable)
}

// FetchClimate downloads the article for city and parses its climate table.
func (c *WikipediaClient) FetchClimate(ctx context.Context, city string) (models.ClimateRecord, error) {
	title := ArticleTitle(city)
	if title == "" {
		return models.ClimateRecord{}, fmt.Errorf("invalid city: empty name")
	}

	var months []models.MonthlyClimate
	call := func() error {
		return c.retry.do(ctx, upstreamWikipedia, func(ctx context.Context) error {
			var err error
			months, err = c.fetchOnce(ctx, title)
			return err
		})
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		recordFailure(upstreamWikipedia, err)
		return models.ClimateRecord{}, fmt.Errorf("fetch climate for %s: %w", city, err)
	}

	return models.ClimateRecord{
		City:      strings.ReplaceAll(title, "_", " "),
		Source:    models.ClimateSourceWikipedia,
		Months:    months,
		FetchedAt: c.now(),
	}, nil
}

func (c *WikipediaClient) fetchOnce(ctx context.Context, title string) ([]models.MonthlyClimate, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/page/html/" + url.PathEscape(title)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", c.userAgent)

	body, err := fetch(ctx, c.client, upstreamWikipedia, req)
	if err != nil {
		return nil, err
	}

	return ParseClimateTable(body)
}

// ArticleTitle turns a city name into a Wikipedia article title ("new york" -> "New_York").
func ArticleTitle(city string) string {
	city = strings.Join(strings.Fields(city), " ")
	if city == "" {
		return ""
	}
	return strings.ReplaceAll(cases.Title(language.English).String(city), " ", "_")
}

// ParseClimateTable finds the first "Climate data for" table in an article
// and returns its mean daily maximum, minimum and precipitation rows.
// Fahrenheit-first and inch-first tables are converted to °C and mm.
func ParseClimateTable(page []byte) ([]models.MonthlyClimate, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := findClimateTable(doc)
	if table == nil {
		return nil, ErrNoClimateTable
	}

	var highs, lows, precip []float64
	for _, row := range tableRows(table) {
		cells := rowCells(row)
		if len(cells) < 13 {
			continue
		}
		label := strings.ToLower(textContent(cells[0]))
		switch {
		case strings.Contains(label, "record"):
			continue
		case strings.Contains(label, "mean daily maximum") && highs == nil:
			highs = monthValues(cells[1:], convertTemp(label))
		case strings.Contains(label, "mean daily minimum") && lows == nil:
			lows = monthValues(cells[1:], convertTemp(label))
		case strings.Contains(label, "average precipitation") && !strings.Contains(label, "days") && precip == nil:
			precip = monthValues(cells[1:], convertPrecip(label))
		}
	}

	if highs == nil || lows == nil {
		return nil, ErrNoClimateTable
	}

	months := make([]models.MonthlyClimate, 12)
	for i := range months {
		months[i] = models.MonthlyClimate{
			Month: time.Month(i + 1),
			HighC: highs[i],
			LowC:  lows[i],
		}
		if precip != nil {
			months[i].PrecipitationMM = precip[i]
		}
	}
	return months, nil
}

// findClimateTable returns the innermost table whose text names a climate table.
func findClimateTable(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findClimateTable(c); t != nil {
			return t
		}
	}
	if n.Type == html.ElementNode && n.Data == "table" &&
		strings.Contains(textContent(n), "Climate data for") {
		return n
	}
	return nil
}

// tableRows returns the rows of table, skipping rows of nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "table":
				continue
			case "tr":
				rows = append(rows, c)
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func rowCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "th" || c.Data == "td") {
			cells = append(cells, c)
		}
	}
	return cells
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "sup" || n.Data == "style" || n.Data == "script") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// monthValues reads the first number of each of the first twelve cells.
// It returns nil when any month is missing.
func monthValues(cells []*html.Node, convert func(float64) float64) []float64 {
	if len(cells) < 12 {
		return nil
	}
	values := make([]float64, 12)
	for i := 0; i < 12; i++ {
		v, ok := parseCellNumber(textContent(cells[i]))
		if !ok {
			return nil
		}
		values[i] = math.Round(convert(v)*10) / 10
	}
	return values
}

func parseCellNumber(s string) (float64, bool) {
	s = strings.NewReplacer("−", "-", "–", "-", ",", "").Replace(s)
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func identity(v float64) float64 { return v }

func convertTemp(label string) func(float64) float64 {
	if unitFirst(label, "°f", "°c") {
		return func(f float64) float64 { return (f - 32) * 5 / 9 }
	}
	return identity
}

func convertPrecip(label string) func(float64) float64 {
	if unitFirst(label, "inches", "mm") {
		return func(in float64) float64 { return in * 25.4 }
	}
	return identity
}

// unitFirst reports whether unit a appears in label before unit b.
func unitFirst(label, a, b string) bool {
	ia := strings.Index(label, a)
	if ia < 0 {
		return false
	}
	ib := strings.Index(label, b)
	return ib < 0 || ia < ib
}
