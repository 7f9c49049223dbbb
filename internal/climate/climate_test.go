package climate

import (
	"testing"
	"time"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

func mustNormals(t *testing.T) *Normals {
	t.Helper()
	n, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return n
}

// TestLookup verifies built-in cities resolve case-insensitively.
func TestLookup(t *testing.T) {
	n := mustNormals(t)

	rec, ok := n.Lookup("  KARACHI ")
	if !ok {
		t.Fatal("Lookup(KARACHI) ok = false")
	}
	if rec.City != "Karachi" || rec.Country != "Pakistan" || rec.Source != models.ClimateSourceBuiltin {
		t.Errorf("Lookup() = %+v", rec)
	}
	if len(rec.Months) != 12 {
		t.Errorf("len(Months) = %d, want 12", len(rec.Months))
	}
	if _, ok := n.Lookup("Atlantis"); ok {
		t.Error("Lookup(Atlantis) ok = true, want false")
	}
}

// TestParse_RejectsShortTable verifies every city needs twelve months.
func TestParse_RejectsShortTable(t *testing.T) {
	data := []byte("cities:\n  - name: X\n    high: [1, 2]\n    low: [0, 1]\n")
	if _, err := Parse(data); err == nil {
		t.Fatal("Parse() expected error for short table, got nil")
	}
}

// TestBandFor covers both thresholds and their boundaries.
func TestBandFor(t *testing.T) {
	tests := []struct {
		mean float64
		want models.ClimateBand
	}{
		{-5, models.BandCold},
		{9.9, models.BandCold},
		{10, models.BandMild},
		{25, models.BandMild},
		{25.1, models.BandHot},
	}
	for _, tt := range tests {
		if got := BandFor(tt.mean); got != tt.want {
			t.Errorf("BandFor(%v) = %q, want %q", tt.mean, got, tt.want)
		}
	}
}

// TestBand verifies classification of built-in months.
func TestBand(t *testing.T) {
	n := mustNormals(t)

	tests := []struct {
		city  string
		month time.Month
		want  models.ClimateBand
	}{
		{"Skardu", time.January, models.BandCold},
		{"Amsterdam", time.January, models.BandCold},
		{"Karachi", time.January, models.BandMild},
		{"Tokyo", time.April, models.BandMild},
		{"Dubai", time.July, models.BandHot},
		{"Karachi", time.July, models.BandHot},
	}
	for _, tt := range tests {
		rec, _ := n.Lookup(tt.city)
		got, ok := Band(rec, tt.month)
		if !ok || got != tt.want {
			t.Errorf("Band(%s, %s) = %q, %v, want %q", tt.city, tt.month, got, ok, tt.want)
		}
	}

	if _, ok := Band(models.ClimateRecord{}, time.May); ok {
		t.Error("Band(empty) ok = true, want false")
	}
}

// TestIsSouthern verifies hemisphere inference from the table.
func TestIsSouthern(t *testing.T) {
	n := mustNormals(t)
	sydney, _ := n.Lookup("Sydney")
	london, _ := n.Lookup("London")

	if !IsSouthern(sydney) {
		t.Error("IsSouthern(Sydney) = false")
	}
	if IsSouthern(london) {
		t.Error("IsSouthern(London) = true")
	}
}

// TestMonthForSeason covers both hemispheres and unknown names.
func TestMonthForSeason(t *testing.T) {
	tests := []struct {
		season   string
		southern bool
		want     time.Month
	}{
		{"winter", false, time.January},
		{"Summer", false, time.July},
		{"fall", false, time.October},
		{"winter", true, time.July},
		{"spring", true, time.October},
		{"monsoon", true, time.July},
		{"rainy", false, 0},
	}
	for _, tt := range tests {
		if got := MonthForSeason(tt.season, tt.southern); got != tt.want {
			t.Errorf("MonthForSeason(%q, %v) = %v, want %v", tt.season, tt.southern, got, tt.want)
		}
	}
}

// TestResolveMonth covers explicit months, seasons, year rollover and the
// assumed current month.
func TestResolveMonth(t *testing.T) {
	now := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		intent      models.Intent
		southern    bool
		wantMonth   time.Month
		wantYear    int
		wantAssumed bool
	}{
		{"later this year", models.Intent{Month: time.December}, false, time.December, 2026, false},
		{"this month", models.Intent{Month: time.October}, false, time.October, 2026, false},
		{"rolls to next year", models.Intent{Month: time.March}, false, time.March, 2027, false},
		{"explicit year", models.Intent{Month: time.March, Year: 2026}, false, time.March, 2026, false},
		{"season", models.Intent{Season: "winter"}, false, time.January, 2027, false},
		{"southern season", models.Intent{Season: "winter"}, true, time.July, 2027, false},
		{"month beats season", models.Intent{Month: time.November, Season: "summer"}, false, time.November, 2026, false},
		{"nothing given", models.Intent{}, false, time.October, 2026, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, y, assumed := ResolveMonth(tt.intent, tt.southern, now)
			if m != tt.wantMonth || y != tt.wantYear || assumed != tt.wantAssumed {
				t.Errorf("ResolveMonth() = (%v, %d, %v), want (%v, %d, %v)",
					m, y, assumed, tt.wantMonth, tt.wantYear, tt.wantAssumed)
			}
		})
	}
}

// TestSummary verifies the rendered text including the wet-month suffix.
func TestSummary(t *testing.T) {
	n := mustNormals(t)
	amsterdam, _ := n.Lookup("Amsterdam")
	mumbai, _ := n.Lookup("Mumbai")

	want := "cold weather in Amsterdam during January, lows around 1°C and highs around 6°C"
	if got := Summary(amsterdam, time.January); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
	want = "hot weather in Mumbai during July, lows around 25°C and highs around 30°C, wet with about 840mm of rain"
	if got := Summary(mumbai, time.July); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
	if got := Summary(models.ClimateRecord{}, time.July); got != "Climate data unavailable for the travel month" {
		t.Errorf("Summary(empty) = %q", got)
	}
}
