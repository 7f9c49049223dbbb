// Package climate classifies monthly climate into clothing bands and holds
// built-in normals for commonly requested cities.
package climate

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

//go:embed data/normals.yaml
var normalsYAML []byte

// Band thresholds on the monthly mean temperature in °C.
const (
	ColdBelowC = 10.0
	HotAboveC  = 25.0
)

// Normals is the built-in climate table.
type Normals struct {
	records map[string]models.ClimateRecord
}

type normalsFile struct {
	Cities []struct {
		Name          string    `yaml:"name"`
		Country       string    `yaml:"country"`
		High          []float64 `yaml:"high"`
		Low           []float64 `yaml:"low"`
		Precipitation []float64 `yaml:"precipitation"`
	} `yaml:"cities"`
}

// Load returns the embedded normals.
func Load() (*Normals, error) {
	return Parse(normalsYAML)
}

// Parse builds normals from YAML. Each city needs twelve highs and lows.
func Parse(data []byte) (*Normals, error) {
	var f normalsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse normals: %w", err)
	}
	n := &Normals{records: make(map[string]models.ClimateRecord, len(f.Cities))}
	for _, c := range f.Cities {
		if len(c.High) != 12 || len(c.Low) != 12 {
			return nil, fmt.Errorf("parse normals: %s: want 12 highs and lows, got %d and %d", c.Name, len(c.High), len(c.Low))
		}
		rec := models.ClimateRecord{
			City:    c.Name,
			Country: c.Country,
			Source:  models.ClimateSourceBuiltin,
			Months:  make([]models.MonthlyClimate, 12),
		}
		for i := 0; i < 12; i++ {
			mc := models.MonthlyClimate{Month: time.Month(i + 1), HighC: c.High[i], LowC: c.Low[i]}
			if len(c.Precipitation) == 12 {
				mc.PrecipitationMM = c.Precipitation[i]
			}
			rec.Months[i] = mc
		}
		n.records[NormalizeCity(c.Name)] = rec
	}
	return n, nil
}

// NormalizeCity lowercases and trims a city name for use as a table or cache key.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// Lookup returns the built-in record for city.
func (n *Normals) Lookup(city string) (models.ClimateRecord, bool) {
	rec, ok := n.records[NormalizeCity(city)]
	return rec, ok
}

// Cities lists the built-in city names, sorted.
func (n *Normals) Cities() []string {
	out := make([]string, 0, len(n.records))
	for _, rec := range n.records {
		out = append(out, rec.City)
	}
	sort.Strings(out)
	return out
}

// BandFor classifies a mean temperature.
func BandFor(meanC float64) models.ClimateBand {
	switch {
	case meanC < ColdBelowC:
		return models.BandCold
	case meanC > HotAboveC:
		return models.BandHot
	default:
		return models.BandMild
	}
}

// Band classifies the record's month. ok is false when the month is missing.
func Band(rec models.ClimateRecord, month time.Month) (models.ClimateBand, bool) {
	mc, ok := rec.ForMonth(month)
	if !ok {
		return models.BandUnknown, false
	}
	return BandFor(mc.MeanC()), true
}

// IsSouthern infers the hemisphere from the record: July colder than January.
func IsSouthern(rec models.ClimateRecord) bool {
	jan, okJan := rec.ForMonth(time.January)
	jul, okJul := rec.ForMonth(time.July)
	return okJan && okJul && jul.MeanC() < jan.MeanC()
}

// IsWet reports whether the month is rainy enough to pack waterproofs.
func IsWet(mc models.MonthlyClimate) bool {
	return mc.PrecipitationMM >= 100
}

// Summary renders the climate of month for display.
func Summary(rec models.ClimateRecord, month time.Month) string {
	mc, ok := rec.ForMonth(month)
	if !ok {
		return "Climate data unavailable for the travel month"
	}
	s := fmt.Sprintf("%s weather in %s during %s, lows around %.0f°C and highs around %.0f°C",
		BandFor(mc.MeanC()), rec.City, month, mc.LowC, mc.HighC)
	if IsWet(mc) {
		s += fmt.Sprintf(", wet with about %.0fmm of rain", mc.PrecipitationMM)
	}
	return s
}
