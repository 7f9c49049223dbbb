// Package intent turns a free-text travel query into a structured intent.
package intent

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("empty query")

// Parser extracts a travel intent from a query.
type Parser interface {
	Parse(ctx context.Context, query string) (models.Intent, error)
}

// Unspecified is the destination recorded when none was found.
const Unspecified = "unspecified"

var (
	categories = map[string]bool{
		"clothing": true, "accessories": true, "gifts": true,
		"electronics": true, "beauty": true, "home": true,
	}
	purposes = map[string]bool{
		"vacation": true, "business": true, "visiting_family": true,
		"cultural_event": true, "other": true,
	}
	urgencies = map[string]bool{"immediate": true, "soon": true, "flexible": true}

	seasonNames = map[string]string{
		"winter": "winter", "spring": "spring", "summer": "summer",
		"autumn": "autumn", "fall": "autumn", "monsoon": "monsoon",
	}

	activityNames = map[string]string{
		"general":         models.ActivityGeneral,
		"beach":           models.ActivityBeach,
		"swimming":        models.ActivityBeach,
		"hiking":          models.ActivityHiking,
		"trekking":        models.ActivityHiking,
		"business":        models.ActivityBusiness,
		"religious_sites": models.ActivityReligiousSite,
		"religious sites": models.ActivityReligiousSite,
		"religious":       models.ActivityReligiousSite,
		"wedding":         models.ActivityWedding,
		"sightseeing":     models.ActivitySightseeing,
	}
)

// Normalize fills defaults and folds every field onto its canonical
// vocabulary. Unknown values fall back to the default for that field.
func Normalize(in models.Intent, query string) models.Intent {
	in.OriginalQuery = query
	in.City = displayName(clean(in.City))
	in.Country = displayName(clean(in.Country))

	in.Destination = clean(in.Destination)
	if in.Destination == "" {
		switch {
		case in.City != "" && in.Country != "":
			in.Destination = in.City + ", " + in.Country
		case in.Country != "":
			in.Destination = in.Country
		case in.City != "":
			in.Destination = in.City
		default:
			in.Destination = Unspecified
		}
	}

	if in.Month < time.January || in.Month > time.December {
		in.Month = 0
	}
	if in.Year < 2000 || in.Year > 2100 {
		in.Year = 0
	}
	in.Season = seasonNames[strings.ToLower(strings.TrimSpace(in.Season))]

	in.Category = pick(in.Category, categories, "clothing")
	in.TravelPurpose = pick(in.TravelPurpose, purposes, "vacation")
	in.Urgency = pick(in.Urgency, urgencies, "flexible")

	act := NormalizeActivity(in.Activity)
	if act == models.ActivityGeneral && in.TravelPurpose == "business" {
		act = models.ActivityBusiness
	}
	in.Activity = act

	in.CulturalEvent = clean(in.CulturalEvent)

	switch {
	case in.Confidence <= 0:
		in.Confidence = 0.5
	case in.Confidence > 1:
		in.Confidence = 1
	}
	return in
}

// NormalizeActivity folds a user- or model-supplied activity onto the
// canonical names rules are scoped by. Unknown values become general.
func NormalizeActivity(s string) string {
	if act, ok := activityNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return act
	}
	return models.ActivityGeneral
}

// clean trims s and maps placeholder values models emit for "nothing" to "".
func clean(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none", "n/a", Unspecified:
		return ""
	}
	return s
}

func pick(v string, allowed map[string]bool, def string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if allowed[v] {
		return v
	}
	return def
}

// displayName title-cases names typed in lower case and leaves anything
// already capitalised ("UAE", "New Delhi") alone.
func displayName(s string) string {
	if s == "" || s != strings.ToLower(s) {
		return s
	}
	return cases.Title(language.English).String(s)
}

var monthsByName = func() map[string]time.Month {
	m := make(map[string]time.Month, 24)
	for mo := time.January; mo <= time.December; mo++ {
		name := strings.ToLower(mo.String())
		m[name] = mo
		m[name[:3]] = mo
	}
	m["sept"] = time.September
	return m
}()

// ParseMonth accepts a month name or three-letter abbreviation.
func ParseMonth(s string) (time.Month, bool) {
	m, ok := monthsByName[strings.ToLower(strings.Trim(strings.TrimSpace(s), ".,"))]
	return m, ok
}
