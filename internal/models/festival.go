package models

import "time"

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the range shares at least one day with month of year.
func (r DateRange) Overlaps(month time.Month, year int) bool {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return !r.Start.After(last) && !r.End.Before(first)
}

// Festival is a recurring event. Solar festivals list Months; lunar
// festivals list dated Occurrences instead.
type Festival struct {
	Name              string       `json:"name"`
	When              string       `json:"when"`
	Months            []time.Month `json:"months,omitempty"`
	Occurrences       []DateRange  `json:"occurrences,omitempty"`
	Significance      string       `json:"significance"`
	ShoppingRelevance string       `json:"shoppingRelevance"`
	Tags              []string     `json:"tags,omitempty"`
}
