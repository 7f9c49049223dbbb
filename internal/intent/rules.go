package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// keywordSet maps a canonical value to the words that select it. Sets are
// checked in order and the first hit wins.
type keywordSet struct {
	value string
	words []string
}

var activityKeywords = []keywordSet{
	{models.ActivityBeach, []string{"beach", "beaches", "swim", "swimming", "swimwear", "swimsuit", "resort", "pool", "snorkel", "snorkeling", "diving"}},
	{models.ActivityHiking, []string{"hike", "hiking", "trek", "trekking", "mountain", "mountains", "camping", "climb", "climbing"}},
	{models.ActivityReligiousSite, []string{"mosque", "mosques", "temple", "temples", "church", "churches", "shrine", "shrines", "religious", "pilgrimage", "umrah", "hajj"}},
	{models.ActivityWedding, []string{"wedding", "weddings", "mehndi", "nikah", "shaadi", "reception"}},
	{models.ActivityBusiness, []string{"business", "meeting", "meetings", "conference", "office", "work trip", "client"}},
	{models.ActivitySightseeing, []string{"sightseeing", "tour", "touring", "museum", "museums", "explore", "exploring"}},
}

var categoryKeywords = []keywordSet{
	{"gifts", []string{"gift", "gifts", "present", "presents", "souvenir", "souvenirs"}},
	{"accessories", []string{"accessory", "accessories", "watch", "jewelry", "jewellery", "scarf", "bag"}},
	{"electronics", []string{"electronics", "gadget", "gadgets", "phone", "charger", "adapter"}},
}

var eventKeywords = []keywordSet{
	{"Eid", []string{"eid", "eid al-fitr", "eid al-adha"}},
	{"Ramadan", []string{"ramadan"}},
	{"Diwali", []string{"diwali", "deepavali"}},
	{"Holi", []string{"holi"}},
	{"Christmas", []string{"christmas", "xmas"}},
	{"Cherry Blossom Season", []string{"cherry blossom", "hanami"}},
}

var (
	budgetWords  = []string{"budget", "cheap", "affordable", "expensive", "inexpensive", "$"}
	urgentWords  = []string{"urgent", "urgently", "asap", "quick", "quickly", "tomorrow", "tonight"}
	soonWords    = []string{"soon", "next week", "this week", "this weekend"}
	weatherWords = []string{"weather", "cold", "hot", "rain", "rainy", "snow", "warm", "humid", "pack", "packing"}
	familyWords  = []string{"family", "relatives", "parents", "grandparents", "in-laws"}
	seasonWords  = []string{"winter", "spring", "summer", "autumn", "fall", "monsoon"}

	// Capitalised words that are never a destination.
	stopWords = map[string]bool{
		"what": true, "should": true, "wear": true, "going": true, "traveling": true,
		"travelling": true, "trip": true, "pack": true, "buy": true, "need": true,
		"help": true, "looking": true, "the": true, "for": true, "and": true,
		"which": true, "where": true, "when": true, "can": true, "any": true,
		"best": true, "good": true, "visiting": true, "planning": true, "heading": true,
		"clothes": true, "clothing": true, "outfit": true, "outfits": true,
		"packing": true, "list": true, "hello": true, "hey": true, "please": true,
		"recommend": true, "suggest": true, "tell": true, "show": true, "give": true,
		"travel": true, "vacation": true, "holiday": true, "honeymoon": true, "my": true,
	}

	yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)
)

// RuleParser extracts intent with keyword tables. It never calls out and is
// the fallback when the model is unavailable.
type RuleParser struct {
	cities    []culture.Place
	countries []culture.Place
}

// NewRuleParser builds a parser that recognises the given places. City
// entries are matched before country entries.
func NewRuleParser(places []culture.Place) *RuleParser {
	p := &RuleParser{}
	for _, pl := range places {
		if pl.City != "" {
			p.cities = append(p.cities, pl)
		} else {
			p.countries = append(p.countries, pl)
		}
	}
	return p
}

// Parse implements Parser.
func (p *RuleParser) Parse(ctx context.Context, query string) (models.Intent, error) {
	if strings.TrimSpace(query) == "" {
		return models.Intent{}, ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return models.Intent{}, err
	}
	lower := strings.ToLower(query)

	in := models.Intent{
		Source:     models.IntentSourceRules,
		Confidence: 0.7,
	}
	in.City, in.Country = p.findPlace(query, lower)

	in.Month = findMonth(lower)
	if m := yearPattern.FindString(lower); m != "" {
		in.Year, _ = strconv.Atoi(m)
	}
	in.Season = firstWord(lower, seasonWords)

	in.Activity = firstMatch(lower, activityKeywords, models.ActivityGeneral)
	in.Category = firstMatch(lower, categoryKeywords, "clothing")
	in.CulturalEvent = firstMatch(lower, eventKeywords, "")

	switch {
	case in.Activity == models.ActivityBusiness:
		in.TravelPurpose = "business"
	case in.CulturalEvent != "" || in.Activity == models.ActivityWedding:
		in.TravelPurpose = "cultural_event"
	case firstWord(lower, familyWords) != "":
		in.TravelPurpose = "visiting_family"
	default:
		in.TravelPurpose = "vacation"
	}

	in.BudgetMentioned = firstWord(lower, budgetWords) != ""
	switch {
	case firstWord(lower, urgentWords) != "":
		in.Urgency = "immediate"
	case firstWord(lower, soonWords) != "":
		in.Urgency = "soon"
	default:
		in.Urgency = "flexible"
	}
	in.WeatherConcern = firstWord(lower, weatherWords) != "" || in.Season != ""

	return Normalize(in, query), nil
}

// findPlace returns the city and country named in the query. Known cities
// carry their country; otherwise a known country and a capitalised word are
// taken separately.
func (p *RuleParser) findPlace(query, lower string) (city, country string) {
	for _, pl := range p.cities {
		if hasWord(lower, pl.Name) {
			return pl.City, pl.Country
		}
	}
	for _, pl := range p.countries {
		if hasWord(lower, pl.Name) {
			country = pl.Country
			break
		}
	}
	return guessCity(query, country), country
}

// guessCity picks the first capitalised word that is not a stop word, a
// month, a season or the country itself.
func guessCity(query, country string) string {
	for _, w := range strings.FieldsFunc(query, notWordRune) {
		r := []rune(w)
		if len(r) < 3 || !unicode.IsUpper(r[0]) {
			continue
		}
		lw := strings.ToLower(w)
		if stopWords[lw] || strings.EqualFold(w, country) {
			continue
		}
		if _, isMonth := ParseMonth(lw); isMonth {
			continue
		}
		if _, isSeason := seasonNames[lw]; isSeason {
			continue
		}
		if firstMatch(lw, eventKeywords, "") != "" || firstMatch(lw, activityKeywords, "") != "" ||
			firstMatch(lw, categoryKeywords, "") != "" || firstWord(lw, weatherWords) != "" {
			continue
		}
		return w
	}
	return ""
}

// findMonth returns the first month named in the query, or 0.
func findMonth(lower string) time.Month {
	for _, w := range strings.FieldsFunc(lower, notWordRune) {
		m, ok := ParseMonth(w)
		if !ok || w == "may" && !mayIsMonth(lower) {
			continue
		}
		return m
	}
	return 0
}

var mayPattern = regexp.MustCompile(`\b(in|during|of|early|late|mid|mid-)\s*may\b|\bmay\s+\d`)

// mayIsMonth separates "in May" from the modal verb.
func mayIsMonth(lower string) bool {
	return mayPattern.MatchString(lower)
}

func firstMatch(lower string, sets []keywordSet, def string) string {
	for _, s := range sets {
		if firstWord(lower, s.words) != "" {
			return s.value
		}
	}
	return def
}

func firstWord(lower string, words []string) string {
	for _, w := range words {
		if hasWord(lower, w) {
			return w
		}
	}
	return ""
}

// hasWord reports whether phrase occurs in s bounded by non-word runes.
// Edges of the phrase that are themselves punctuation ("$") need no boundary.
func hasWord(s, phrase string) bool {
	if phrase == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(phrase)
		if (notWordRune(first) || boundaryBefore(s, start)) && (notWordRune(last) || boundaryAfter(s, end)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		i = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return notWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return notWordRune(r)
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
