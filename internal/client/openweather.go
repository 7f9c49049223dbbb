package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

const upstreamOpenWeather = "openweather"

// WeatherClient returns live conditions for a location.
type WeatherClient interface {
	GetCurrentWeather(ctx context.Context, location string) (models.CurrentWeather, error)
	ValidateAPIKey(ctx context.Context) error
}

// OpenWeatherClient calls the OpenWeatherMap current weather endpoint.
type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	retry   RetryPolicy
	now     func() time.Time
}

// NewOpenWeatherClient returns a client using DefaultRetryPolicy.
func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, apiURL, timeout, DefaultRetryPolicy)
}

// NewOpenWeatherClientWithRetry returns a client with a custom retry policy.
// apiKey must be non-empty.
func NewOpenWeatherClientWithRetry(apiKey, apiURL string, timeout time.Duration, retry RetryPolicy) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}

	return &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		retry:   retry.withDefaults(),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

type openWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

// GetCurrentWeather returns the current conditions for location, retrying
// rate limits, 5xx responses and timeouts.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, location string) (models.CurrentWeather, error) {
	var result models.CurrentWeather
	err := c.retry.do(ctx, upstreamOpenWeather, func(ctx context.Context) error {
		var err error
		result, err = c.callAPI(ctx, location)
		return err
	})
	if err != nil {
		recordFailure(upstreamOpenWeather, err)
		return models.CurrentWeather{}, err
	}
	return result, nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, location string) (models.CurrentWeather, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		return models.CurrentWeather{}, fmt.Errorf("build request: %w", err)
	}

	body, err := fetch(ctx, c.client, upstreamOpenWeather, req)
	if err != nil {
		return models.CurrentWeather{}, err
	}

	var apiResp openWeatherResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.CurrentWeather{}, fmt.Errorf("parse response: %w", err)
	}

	return c.mapResponse(apiResp, location), nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) mapResponse(apiResp openWeatherResponse, location string) models.CurrentWeather {
	conditions := ""
	if len(apiResp.Weather) > 0 {
		conditions = apiResp.Weather[0].Main
		if apiResp.Weather[0].Description != "" {
			conditions = apiResp.Weather[0].Description
		}
	}

	displayName := apiResp.Name
	if displayName == "" {
		displayName = location
	}

	return models.CurrentWeather{
		Location:    strings.ToLower(displayName),
		Temperature: apiResp.Main.Temp,
		Conditions:  conditions,
		Humidity:    apiResp.Main.Humidity,
		WindSpeed:   apiResp.Wind.Speed,
		Timestamp:   c.now(),
	}
}

// ValidateAPIKey makes one request for a known city and reports whether the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London")
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
