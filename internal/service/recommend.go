package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/catalog"
	"github.com/kjstillabower/travel-wardrobe-service/internal/client"
	"github.com/kjstillabower/travel-wardrobe-service/internal/climate"
	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	"github.com/kjstillabower/travel-wardrobe-service/internal/intent"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
)

// Fallback labels recorded in RecommendationMetadata.Fallbacks.
const (
	FallbackIntent   = "intent"
	FallbackClimate  = "climate"
	FallbackStale    = "stale_climate"
	FallbackWeather  = "current_weather"
	FallbackProducts = "generic_products"
)

// DefaultLimit is the number of products returned when none is configured.
const DefaultLimit = 6

// Wardrobe tags selected for the "clothing" category.
var wardrobeTags = []string{"clothing", "swimwear", "footwear", "accessories", "bags"}

// Tags that make a product a good fit for an activity.
var activityTags = map[string][]string{
	models.ActivityBeach:         {"beach", "swimwear", "sun-protection"},
	models.ActivityHiking:        {"hiking", "mountain", "outdoor", "waterproof"},
	models.ActivityBusiness:      {"business", "formal", "professional"},
	models.ActivityReligiousSite: {"modest", "religious", "respectful", "slip-on"},
	models.ActivityWedding:       {"traditional", "formal", "festival"},
	models.ActivitySightseeing:   {"travel", "walking", "camera", "security"},
}

// Climate bands whose items are out of place in the other band.
var opposingBand = map[models.ClimateBand]models.ClimateBand{
	models.BandHot:  models.BandCold,
	models.BandCold: models.BandHot,
}

// RecommenderConfig holds optional collaborators and limits.
type RecommenderConfig struct {
	Limit   int                  // products per answer (default DefaultLimit)
	Weather client.WeatherClient // live conditions, nil to disable
}

// Recommender runs the recommendation pipeline for one chat message.
type Recommender struct {
	parser   intent.Parser
	cultures *culture.Table
	catalog  *catalog.Catalog
	climate  ClimateProvider
	weather  client.WeatherClient
	limit    int
	now      func() time.Time
}

// NewRecommender wires the pipeline. climates may be nil to skip climate lookups.
func NewRecommender(parser intent.Parser, cultures *culture.Table, cat *catalog.Catalog, climates ClimateProvider, cfg RecommenderConfig) *Recommender {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Recommender{
		parser:   parser,
		cultures: cultures,
		catalog:  cat,
		climate:  climates,
		weather:  cfg.Weather,
		limit:    cfg.Limit,
		now:      time.Now,
	}
}

// tripContext is the state accumulated while answering one query.
type tripContext struct {
	intent    models.Intent
	profile   culture.Profile
	city      string
	record    models.ClimateRecord
	hasRecord bool
	month     time.Month
	year      int
	assumed   bool
	band      models.ClimateBand
	wet       bool
	current   *models.CurrentWeather
	fallbacks []string
}

func (t *tripContext) degrade(label string) {
	for _, f := range t.fallbacks {
		if f == label {
			return
		}
	}
	t.fallbacks = append(t.fallbacks, label)
}

// Recommend answers a free-text travel query. Only a blank query is an
// error; every other failure degrades the answer and is listed in
// Metadata.Fallbacks.
func (r *Recommender) Recommend(ctx context.Context, query string) (models.Recommendation, error) {
	if strings.TrimSpace(query) == "" {
		return models.Recommendation{}, intent.ErrEmptyQuery
	}
	logger := observability.LoggerFromContext(ctx)
	now := r.now()

	trip := &tripContext{}
	trip.intent = r.parseIntent(ctx, query, trip)
	if errors.Is(ctx.Err(), context.Canceled) {
		return models.Recommendation{}, ctx.Err()
	}

	trip.profile = r.cultures.Resolve(trip.intent.Destination, trip.intent.City, trip.intent.Country)
	trip.city = trip.intent.City
	if trip.city == "" {
		trip.city = trip.profile.City
	}

	r.resolveClimate(ctx, trip, now)
	r.checkCurrentWeather(ctx, trip, now)

	candidates := r.candidates(trip)
	kept, excluded := culture.Filter(candidates, trip.profile, trip.intent.Activity)
	countryLabel := trip.profile.Country
	if countryLabel == "" {
		countryLabel = "generic"
	}
	for _, e := range excluded {
		observability.TabooExclusionsTotal.WithLabelValues(countryLabel, e.Rule).Inc()
	}

	festivals := culture.FestivalsIn(trip.profile, trip.month, trip.year)
	for _, f := range festivals {
		observability.FestivalMatchesTotal.WithLabelValues(f.Name).Inc()
	}

	products := r.rank(kept, trip, culture.SubstituteTags(excluded), festivals)
	if len(products) == 0 {
		products = r.genericProducts(trip)
		trip.degrade(FallbackProducts)
	}

	rec := models.Recommendation{
		Products:  products,
		Excluded:  excluded,
		Festivals: festivals,
		Climate:   r.climateSummary(trip),
		Culture:   culturalSummary(trip.profile),
		Metadata: models.RecommendationMetadata{
			ProcessedAt:   now.UTC(),
			Intent:        trip.intent,
			ProductsCount: len(products),
			AIGenerated:   trip.intent.Source == models.IntentSourceGenAI,
			Fallbacks:     trip.fallbacks,
		},
	}
	rec.Message = composeMessage(trip, len(products))
	rec.Explanation = composeExplanation(trip, rec.Climate, excluded, festivals)
	rec.TravelTips = composeTips(trip, festivals)

	outcome := "full"
	if len(trip.fallbacks) > 0 {
		outcome = "degraded"
	}
	observability.RecommendationsTotal.WithLabelValues(outcome).Inc()
	logger.Info("recommendation served",
		zap.String("destination", trip.profile.Destination),
		zap.String("activity", trip.intent.Activity),
		zap.String("band", string(trip.band)),
		zap.Int("products", len(products)),
		zap.Int("excluded", len(excluded)),
		zap.Strings("fallbacks", trip.fallbacks),
	)
	return rec, nil
}

func (r *Recommender) parseIntent(ctx context.Context, query string, trip *tripContext) models.Intent {
	in, err := r.parser.Parse(ctx, query)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("intent parsing failed, using generic intent", zap.Error(err))
		trip.degrade(FallbackIntent)
		return intent.Normalize(models.Intent{Source: models.IntentSourceRules, Confidence: 0.1}, query)
	}
	if in.FallbackReason != "" {
		trip.degrade(FallbackIntent)
	}
	return in
}

// resolveClimate fills the record, travel month and band. A missing city is
// not a failure; a failed lookup is.
func (r *Recommender) resolveClimate(ctx context.Context, trip *tripContext, now time.Time) {
	if trip.city != "" && r.climate != nil {
		rec, err := r.climate.GetClimate(ctx, trip.city)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("climate lookup failed",
				zap.String("city", trip.city), zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
			trip.degrade(FallbackClimate)
		} else {
			trip.record, trip.hasRecord = rec, true
			if rec.Stale {
				trip.degrade(FallbackStale)
			}
		}
	}

	trip.month, trip.year, trip.assumed = climate.ResolveMonth(trip.intent, trip.hasRecord && climate.IsSouthern(trip.record), now)
	if !trip.hasRecord {
		return
	}
	if band, ok := climate.Band(trip.record, trip.month); ok {
		trip.band = band
	}
	if mc, ok := trip.record.ForMonth(trip.month); ok {
		trip.wet = climate.IsWet(mc)
	}
}

// checkCurrentWeather adds live conditions when the trip is this month.
func (r *Recommender) checkCurrentWeather(ctx context.Context, trip *tripContext, now time.Time) {
	if r.weather == nil || trip.city == "" || trip.month != now.Month() || trip.year != now.Year() {
		return
	}
	cw, err := r.weather.GetCurrentWeather(ctx, trip.city)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("current weather unavailable", zap.String("city", trip.city), zap.Error(err))
		trip.degrade(FallbackWeather)
		return
	}
	trip.current = &cw
	cond := strings.ToLower(cw.Conditions)
	if strings.Contains(cond, "rain") || strings.Contains(cond, "drizzle") || strings.Contains(cond, "thunder") {
		trip.wet = true
	}
	if trip.band == models.BandUnknown {
		trip.band = climate.BandFor(cw.Temperature)
	}
}

// candidates selects catalog items for the category, dropping items meant
// for the opposite climate and swimwear on trips without water.
func (r *Recommender) candidates(trip *tripContext) []models.Product {
	var pool []models.Product
	if trip.intent.Category == "clothing" {
		for _, p := range r.catalog.All() {
			if hasAnyTag(p, wardrobeTags) {
				pool = append(pool, p)
			}
		}
	} else {
		pool = r.catalog.Filter(catalog.Query{Category: trip.intent.Category})
	}

	out := pool[:0:0]
	for _, p := range pool {
		if opp, ok := opposingBand[trip.band]; ok {
			if suitsBand(p, opp) && !suitsBand(p, trip.band) {
				continue
			}
		}
		if p.HasTag("swimwear") && trip.intent.Activity != models.ActivityBeach && trip.band != models.BandHot {
			continue
		}
		out = append(out, p)
	}
	return out
}

// rank scores products and returns the top r.limit, best first. Ties keep
// catalog order.
func (r *Recommender) rank(products []models.Product, trip *tripContext, substitutes []string, festivals []models.FestivalMatch) []models.ScoredProduct {
	scored := make([]models.ScoredProduct, 0, len(products))
	for _, p := range products {
		score := culture.CulturalScore(p, trip.profile)
		var reasons []string

		if trip.band != models.BandUnknown && suitsBand(p, trip.band) {
			score += 0.3
			reasons = append(reasons, fmt.Sprintf("suits %s weather", trip.band))
		}
		if trip.wet && p.HasTag("waterproof") {
			score += 0.2
			reasons = append(reasons, "keeps you dry in the rain")
		}
		if tags := activityTags[trip.intent.Activity]; hasAnyTag(p, tags) {
			score += 0.3
			reasons = append(reasons, "good for "+strings.ReplaceAll(trip.intent.Activity, "_", " "))
		}
		if hasAnyTag(p, substitutes) {
			score += 0.2
			reasons = append(reasons, "respectful alternative")
		} else if trip.profile.Conservative && hasAnyTag(p, catalog.CulturalKeywords["conservative"]) {
			score += 0.1
			reasons = append(reasons, "fits local dress norms")
		}
		if name, ok := festivalFor(p, festivals); ok {
			score += 0.1
			reasons = append(reasons, "useful for "+name)
		}
		if trip.intent.CulturalEvent != "" && p.HasTag(strings.ToLower(trip.intent.CulturalEvent)) {
			score += 0.2
			reasons = append(reasons, "made for "+trip.intent.CulturalEvent)
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "versatile travel pick")
		}
		scored = append(scored, models.ScoredProduct{
			Product: p,
			Score:   roundScore(score),
			Reason:  strings.Join(reasons, "; "),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > r.limit {
		scored = scored[:r.limit]
	}
	return scored
}

// genericProducts returns essentials that pass the destination's taboo
// rules, used when nothing else survives filtering.
func (r *Recommender) genericProducts(trip *tripContext) []models.ScoredProduct {
	pool := r.catalog.Filter(catalog.Query{ExcludeInappropriate: true})
	kept, _ := culture.Filter(pool, trip.profile, trip.intent.Activity)
	var out []models.ScoredProduct
	for _, p := range kept {
		if !p.HasTag("essential") && !p.HasTag("travel") {
			continue
		}
		out = append(out, models.ScoredProduct{Product: p, Score: 0.5, Reason: "travel essential"})
		if len(out) == r.limit {
			break
		}
	}
	return out
}

func (r *Recommender) climateSummary(trip *tripContext) models.ClimateSummary {
	cs := models.ClimateSummary{City: trip.city, Current: trip.current}
	if trip.month != 0 {
		cs.Month = trip.month.String()
	}
	switch {
	case trip.hasRecord:
		cs.Band = trip.band
		cs.Source = trip.record.Source
		cs.Stale = trip.record.Stale
		cs.Summary = climate.Summary(trip.record, trip.month)
		if mc, ok := trip.record.ForMonth(trip.month); ok {
			cs.HighC, cs.LowC = mc.HighC, mc.LowC
		}
	case trip.current != nil:
		cs.Band = trip.band
		cs.Summary = fmt.Sprintf("Currently %.0f°C and %s in %s", trip.current.Temperature, trip.current.Conditions, trip.city)
	case trip.city == "":
		cs.Summary = "No city given, so climate was not checked"
	default:
		cs.Summary = "Climate data unavailable for " + trip.city + ", showing options for varied weather"
	}
	return cs
}

func culturalSummary(p culture.Profile) models.CulturalSummary {
	return models.CulturalSummary{
		Destination:      p.Destination,
		ClothingNorms:    culture.SoftenNorms(p.ClothingNorms),
		GiftCulture:      p.GiftCulture,
		SensitivityFlags: p.SensitivityFlags,
		Note:             p.Note,
	}
}

func composeMessage(trip *tripContext, n int) string {
	dest := trip.profile.Destination
	if dest == "" || dest == intent.Unspecified {
		return fmt.Sprintf("Here are %d versatile travel picks. Tell me where and when you are going for tailored advice.", n)
	}
	when := ""
	if !trip.assumed {
		when = " in " + trip.month.String()
	}
	return fmt.Sprintf("Here are %d picks for %s%s.", n, dest, when)
}

func composeExplanation(trip *tripContext, cs models.ClimateSummary, excluded []models.ExcludedProduct, festivals []models.FestivalMatch) string {
	parts := []string{cs.Summary + "."}
	if trip.profile.Known {
		if norm, ok := trip.profile.ClothingNorms[normKey(trip.intent.Activity)]; ok {
			parts = append(parts, "Local norms: "+culture.SoftenNorms(map[string]string{"n": norm})["n"]+".")
		}
	} else if trip.profile.Note != "" {
		parts = append(parts, trip.profile.Note+".")
	}
	if len(excluded) > 0 {
		parts = append(parts, fmt.Sprintf("Left out %d item(s) that clash with local customs.", len(excluded)))
	}
	if len(festivals) > 0 {
		names := make([]string, len(festivals))
		for i, f := range festivals {
			names[i] = f.Name
		}
		parts = append(parts, "Your trip overlaps "+strings.Join(names, " and ")+".")
	}
	return strings.Join(parts, " ")
}

func composeTips(trip *tripContext, festivals []models.FestivalMatch) []string {
	var tips []string
	if trip.assumed {
		tips = append(tips, fmt.Sprintf("No travel month given, so %s was assumed", trip.month))
	}
	if trip.wet {
		tips = append(tips, "Expect rain, pack a waterproof layer and quick-dry shoes")
	}
	switch trip.band {
	case models.BandHot:
		tips = append(tips, "Choose loose, breathable fabrics and carry sun protection")
	case models.BandCold:
		tips = append(tips, "Layer up, a thermal base and an insulated outer layer work best")
	case models.BandMild:
		tips = append(tips, "Pack light layers for cool mornings and warm afternoons")
	}
	tips = append(tips, trip.profile.SensitivityFlags...)
	if trip.intent.Activity == models.ActivityReligiousSite {
		if norm, ok := trip.profile.ClothingNorms[models.ActivityReligiousSite]; ok {
			tips = append(tips, culture.SoftenNorms(map[string]string{"n": norm})["n"])
		}
	}
	if trip.intent.Category == "gifts" && trip.profile.GiftCulture != "" {
		tips = append(tips, "Gift customs: "+trip.profile.GiftCulture)
	}
	for _, f := range festivals {
		tips = append(tips, fmt.Sprintf("%s (%s): %s", f.Name, f.When, f.ShoppingRelevance))
	}
	if trip.intent.BudgetMentioned {
		tips = append(tips, "Versatile pieces that mix and match stretch a tight budget")
	}
	return tips
}

// normKey maps an activity onto the clothing norm keys.
func normKey(activity string) string {
	switch activity {
	case models.ActivityBusiness, models.ActivityReligiousSite:
		return activity
	case models.ActivityBeach, models.ActivityHiking, models.ActivitySightseeing:
		return "casual"
	default:
		return "general"
	}
}

// suitsBand reports whether p carries a whole climate tag for band. Tag
// fragments are not enough here: "photography" is not a hot-weather item.
func suitsBand(p models.Product, band models.ClimateBand) bool {
	return hasAnyTag(p, catalog.ClimateKeywords[string(band)])
}

// festivalFor returns the first festival whose tags p carries.
func festivalFor(p models.Product, festivals []models.FestivalMatch) (string, bool) {
	for _, f := range festivals {
		if hasAnyTag(p, f.Tags) {
			return f.Name, true
		}
	}
	return "", false
}

func hasAnyTag(p models.Product, tags []string) bool {
	for _, t := range tags {
		if p.HasTag(t) {
			return true
		}
	}
	return false
}

func roundScore(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
