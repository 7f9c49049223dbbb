//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
	"github.com/kjstillabower/travel-wardrobe-service/internal/observability"
	testhelpers "github.com/kjstillabower/travel-wardrobe-service/internal/testhelpers"
)

var testLogger *zap.Logger

func init() {
	var err error
	testLogger, err = observability.NewLogger()
	if err != nil {
		panic(err)
	}
}

// setupIntegrationRouter wires the full router over live Wikipedia.
func setupIntegrationRouter(t *testing.T) (http.Handler, func()) {
	cfg := testhelpers.GetIntegrationConfig(t)
	climates, _, cleanup := testhelpers.SetupIntegrationService(t, cfg)
	rec, cat, cultures := testhelpers.SetupIntegrationRecommender(t, climates)
	h := NewHandler(HandlerDeps{
		Recommender: rec,
		Catalog:     cat,
		Cultures:    cultures,
		Climates:    climates,
		Logger:      testLogger,
	})
	return NewRouter(h, RouterConfig{Logger: testLogger}), cleanup
}

// TestIntegration_ClimateScrape fetches a city outside the built-in table
// and expects a twelve-month record from Wikipedia.
func TestIntegration_ClimateScrape(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/climate/Reykjavik?month=1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var got climateResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != models.ClimateSourceWikipedia || len(got.Months) != 12 {
		t.Errorf("record = %+v, want 12 wikipedia months", got.ClimateRecord)
	}
	if got.Focus == nil || got.Focus.Band != models.BandCold {
		t.Errorf("January focus = %+v, want cold", got.Focus)
	}
}

// TestIntegration_ChatScrapedCity runs a chat for a scraped city and expects
// no climate fallback.
func TestIntegration_ChatScrapedCity(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"query":"hiking around Reykjavik in January"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var rec models.Recommendation
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, f := range rec.Metadata.Fallbacks {
		if f == "climate" {
			t.Errorf("fallbacks = %v, want live climate", rec.Metadata.Fallbacks)
		}
	}
	if rec.Climate.Band != models.BandCold {
		t.Errorf("band = %q, want cold", rec.Climate.Band)
	}
}

// TestIntegration_ConcurrentScrapesCoalesce fires parallel requests for one
// uncached city; every caller must get the same record.
func TestIntegration_ConcurrentScrapesCoalesce(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	const n = 8
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/climate/Chicago", nil))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for i, c := range codes {
		if c != http.StatusOK {
			t.Errorf("request %d status = %d, want 200", i, c)
		}
	}
}

// TestIntegration_UnknownCity expects a 404 for a title with no article.
func TestIntegration_UnknownCity(t *testing.T) {
	router, cleanup := setupIntegrationRouter(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/climate/Qxzvplorkton", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404; body %s", w.Code, w.Body.String())
	}
}
