package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/travel-wardrobe-service/internal/climate"
	"github.com/kjstillabower/travel-wardrobe-service/internal/client"
	"github.com/kjstillabower/travel-wardrobe-service/internal/culture"
	"github.com/kjstillabower/travel-wardrobe-service/internal/intent"
	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/service"
	"github.com/kjstillabower/travel-wardrobe-service/internal/validation"
)

type monthClimate struct {
	Month   string             `json:"month"`
	Band    models.ClimateBand `json:"band"`
	Wet     bool               `json:"wet"`
	Summary string             `json:"summary"`
}

type climateResponse struct {
	models.ClimateRecord
	Southern bool          `json:"southernHemisphere"`
	Focus    *monthClimate `json:"focus,omitempty"`
}

// GetClimate handles GET /climate/{city}. The optional month query parameter
// (1-12 or a month name) adds that month's band and summary.
func (h *Handler) GetClimate(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateName(mux.Vars(r)["city"], h.nameMinLength, h.nameMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", validationMessage(err))
		return
	}
	month, ok := parseMonthParam(r.URL.Query().Get("month"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "INVALID_MONTH", "month must be 1-12 or a month name")
		return
	}

	rec, err := h.climates.GetClimate(r.Context(), city)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoCity):
			writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "city is required")
		case errors.Is(err, client.ErrCityNotFound), errors.Is(err, client.ErrNoClimateTable),
			errors.Is(err, service.ErrClimateUnavailable):
			writeError(w, r, http.StatusNotFound, "CLIMATE_NOT_FOUND", "no climate data for "+city)
		default:
			writeServiceError(w, r, "Unable to fetch climate data", err)
		}
		return
	}

	resp := climateResponse{ClimateRecord: rec, Southern: climate.IsSouthern(rec)}
	if month != 0 {
		if mc, found := rec.ForMonth(month); found {
			band, _ := climate.Band(rec, month)
			resp.Focus = &monthClimate{
				Month:   month.String(),
				Band:    band,
				Wet:     climate.IsWet(mc),
				Summary: climate.Summary(rec, month),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type cultureResponse struct {
	culture.Profile
	ActiveRules []culture.Rule         `json:"activeRules"`
	InMonth     []models.FestivalMatch `json:"festivalsInMonth,omitempty"`
}

// GetCulture handles GET /culture/{destination}. Optional activity and month
// query parameters narrow the active rules and festivals.
func (h *Handler) GetCulture(w http.ResponseWriter, r *http.Request) {
	dest, err := validation.ValidateName(mux.Vars(r)["destination"], h.nameMinLength, h.nameMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DESTINATION", validationMessage(err))
		return
	}
	month, ok := parseMonthParam(r.URL.Query().Get("month"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "INVALID_MONTH", "month must be 1-12 or a month name")
		return
	}
	activity := intent.NormalizeActivity(r.URL.Query().Get("activity"))

	profile := h.cultures.Resolve(dest, "", "")
	profile.ClothingNorms = culture.SoftenNorms(profile.ClothingNorms)
	resp := cultureResponse{Profile: profile, ActiveRules: profile.RulesFor(activity)}
	if resp.ActiveRules == nil {
		resp.ActiveRules = []culture.Rule{}
	}
	if month != 0 {
		year := time.Now().Year()
		if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y > 0 {
			year = y
		}
		resp.InMonth = culture.FestivalsIn(profile, month, year)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseMonthParam accepts "", 1-12 or a month name or abbreviation.
// An empty value returns (0, true).
func parseMonthParam(s string) (time.Month, bool) {
	if s == "" {
		return 0, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Month(n), n >= 1 && n <= 12
	}
	return intent.ParseMonth(s)
}
