package culture

import (
	"fmt"
	"time"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// FestivalsIn returns the profile's festivals that fall in month of year.
// Lunar festivals only match years with tabulated dates. A zero month
// matches nothing.
func FestivalsIn(p Profile, month time.Month, year int) []models.FestivalMatch {
	if month < time.January || month > time.December {
		return nil
	}
	var out []models.FestivalMatch
	for _, f := range p.Festivals {
		when, ok := festivalWhen(f, month, year)
		if !ok {
			continue
		}
		out = append(out, models.FestivalMatch{
			Name:              f.Name,
			When:              when,
			Significance:      f.Significance,
			ShoppingRelevance: f.ShoppingRelevance,
			Tags:              f.Tags,
		})
	}
	return out
}

func festivalWhen(f models.Festival, month time.Month, year int) (string, bool) {
	for _, m := range f.Months {
		if m == month {
			return f.When, true
		}
	}
	for _, r := range f.Occurrences {
		if r.Overlaps(month, year) {
			return formatRange(r), true
		}
	}
	return "", false
}

func formatRange(r models.DateRange) string {
	if r.Start.Equal(r.End) {
		return r.Start.Format("2 Jan 2006")
	}
	if r.Start.Year() != r.End.Year() {
		return fmt.Sprintf("%s to %s", r.Start.Format("2 Jan 2006"), r.End.Format("2 Jan 2006"))
	}
	return fmt.Sprintf("%s to %s", r.Start.Format("2 Jan"), r.End.Format("2 Jan 2006"))
}
