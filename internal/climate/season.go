package climate

import (
	"strings"
	"time"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// Representative month for each season in the northern hemisphere.
var northernSeasons = map[string]time.Month{
	"winter":  time.January,
	"spring":  time.April,
	"summer":  time.July,
	"monsoon": time.July,
	"autumn":  time.October,
	"fall":    time.October,
}

// MonthForSeason maps a season name to a representative month, shifted by
// six months in the southern hemisphere. Unknown seasons return 0.
func MonthForSeason(season string, southern bool) time.Month {
	s := strings.ToLower(strings.TrimSpace(season))
	m, ok := northernSeasons[s]
	if !ok {
		return 0
	}
	if southern && s != "monsoon" {
		m = (m+5)%12 + 1
	}
	return m
}

// ResolveMonth picks the travel month and year for an intent. An explicit
// month wins over a season; with neither, the current month is assumed.
// Without an explicit year the next occurrence on or after now is used.
func ResolveMonth(in models.Intent, southern bool, now time.Time) (month time.Month, year int, assumed bool) {
	month = in.Month
	if month == 0 && in.Season != "" {
		month = MonthForSeason(in.Season, southern)
	}
	if month == 0 {
		return now.Month(), now.Year(), true
	}
	year = in.Year
	if year == 0 {
		year = now.Year()
		if month < now.Month() {
			year++
		}
	}
	return month, year, false
}
