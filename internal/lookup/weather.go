// Package lookup fetches external reports surfaced as chat commands.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultWeatherEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	defaultLookupTimeout   = 10 * time.Second
)

// WeatherConfig customizes the OpenWeatherMap client.
type WeatherConfig struct {
	APIKey     string
	Location   string
	Units      string // "metric" or "imperial"
	Endpoint   string
	HTTPClient *http.Client
}

// WeatherClient reports current conditions for one configured location.
type WeatherClient struct {
	apiKey   string
	location string
	units    string
	endpoint string
	client   *http.Client
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
}

func NewWeatherClient(cfg WeatherConfig) *WeatherClient {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultWeatherEndpoint
	}
	units := cfg.Units
	if units != "imperial" {
		units = "metric"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultLookupTimeout}
	}

	return &WeatherClient{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		location: strings.TrimSpace(cfg.Location),
		units:    units,
		endpoint: endpoint,
		client:   client,
	}
}

func (c *WeatherClient) Report(ctx context.Context) ([]string, error) {
	query := url.Values{}
	query.Set("q", c.location)
	query.Set("appid", c.apiKey)
	query.Set("units", c.units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather service returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	var payload owmResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse weather response: %w", err)
	}

	return c.format(payload), nil
}

func (c *WeatherClient) format(payload owmResponse) []string {
	tempUnit, speedUnit := "°C", "m/s"
	if c.units == "imperial" {
		tempUnit, speedUnit = "°F", "mph"
	}

	description := "unknown conditions"
	if len(payload.Weather) > 0 {
		description = payload.Weather[0].Description
	}
	place := payload.Name
	if place == "" {
		place = c.location
	}

	return []string{
		fmt.Sprintf("Weather for %s: %s", place, description),
		fmt.Sprintf("Temp %.1f%s (feels like %.1f%s), humidity %d%%, pressure %d hPa",
			payload.Main.Temp, tempUnit, payload.Main.FeelsLike, tempUnit,
			payload.Main.Humidity, payload.Main.Pressure),
		fmt.Sprintf("Wind %.1f %s at %d°", payload.Wind.Speed, speedUnit, payload.Wind.Deg),
	}
}
