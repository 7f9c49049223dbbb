package models

import "time"

// Climate record sources.
const (
	ClimateSourceBuiltin   = "builtin"
	ClimateSourceWikipedia = "wikipedia"
)

// ClimateBand is the coarse temperature class used to pick clothing.
type ClimateBand string

const (
	BandCold    ClimateBand = "cold"
	BandMild    ClimateBand = "mild"
	BandHot     ClimateBand = "hot"
	BandUnknown ClimateBand = ""
)

// MonthlyClimate holds the long-term averages for one calendar month.
type MonthlyClimate struct {
	Month           time.Month `json:"month" yaml:"month"`
	HighC           float64    `json:"highC" yaml:"high"`
	LowC            float64    `json:"lowC" yaml:"low"`
	PrecipitationMM float64    `json:"precipitationMm,omitempty" yaml:"precipitation"`
}

// MeanC is the midpoint of the monthly high and low.
func (m MonthlyClimate) MeanC() float64 {
	return (m.HighC + m.LowC) / 2
}

// ClimateRecord is the cached climate table for a city, one entry per month.
type ClimateRecord struct {
	City      string           `json:"city"`
	Country   string           `json:"country,omitempty"`
	Source    string           `json:"source"`
	Months    []MonthlyClimate `json:"months"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Stale     bool             `json:"stale,omitempty"` // served from cache past its TTL
}

// ForMonth returns the entry for m, if the record has one.
func (r ClimateRecord) ForMonth(m time.Month) (MonthlyClimate, bool) {
	for _, mc := range r.Months {
		if mc.Month == m {
			return mc, true
		}
	}
	return MonthlyClimate{}, false
}

// CurrentWeather is a live observation from the weather API.
type CurrentWeather struct {
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"`
	Conditions  string    `json:"conditions"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Timestamp   time.Time `json:"timestamp"`
}
