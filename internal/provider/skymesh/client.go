// Package skymesh provides a client for the SkyMesh station network API.
//
// SkyMesh authenticates with a short-lived bearer token obtained through a
// login exchange, serves the station roster in pages, and publishes an
// authoritative per-station status flag, so deployments on this provider
// normally pair it with the provider-status classification strategy.
package skymesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "skymesh"

	// DefaultBaseURL is the base URL for the SkyMesh API.
	DefaultBaseURL = "https://api.skymesh.io/v1"

	// maxDirectoryPages bounds the roster listing.
	maxDirectoryPages = 6

	// directoryPageSize is the page size requested from the listing endpoint.
	directoryPageSize = 50
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func defaultHTTPClient(name string) *resilience.Client {
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	})
}

// ClientConfig holds configuration for the SkyMesh client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// Tokens supplies bearer credentials (required).
	Tokens *TokenCache

	// HTTPClient executes API requests. Defaults to a resilient client.
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a SkyMesh API client.
type Client struct {
	baseURL    string
	tokens     *TokenCache
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new SkyMesh client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient(ProviderName)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     cfg.Tokens,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// API response types (from the SkyMesh API).

type stationsResponse struct {
	Stations []stationData `json:"stations"`
}

type stationData struct {
	StationID   string       `json:"station_id"`
	StationName string       `json:"station_name"`
	City        string       `json:"city"`
	Region      string       `json:"region"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	InstallDate string       `json:"install_date"`
	LastReading *currentData `json:"last_reading"`
}

type currentData struct {
	Status     string       `json:"status"`
	ObservedAt string       `json:"observed_at"`
	Sensors    []sensorData `json:"sensors"`
}

type sensorData struct {
	Placement   string   `json:"placement"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *float64 `json:"pressure"`
	WindSpeed   *float64 `json:"wind_speed"`
}

// ListStations retrieves the full station roster. Pages are bounded; a
// failing page is logged and skipped rather than aborting the listing.
// Returns ErrDirectoryEmpty only when zero stations were retrieved across
// all pages, which distinguishes "provider down" from "no data this page".
// Missing credentials surface as ErrAuthUnavailable instead, so the caller
// skips the cycle rather than reporting an empty directory.
func (c *Client) ListStations(ctx context.Context) ([]monitor.StationRecord, error) {
	var records []monitor.StationRecord

	for page := 1; page <= maxDirectoryPages; page++ {
		stations, err := c.fetchStationsPage(ctx, page)
		if err != nil {
			if errors.Is(err, ErrAuthUnavailable) {
				// Every page would fail the same way.
				return nil, err
			}
			c.logger.Error().Err(err).
				Int("page", page).
				Msg("skymesh station page fetch failed, skipping")
			continue
		}

		for i := range stations {
			records = append(records, c.toRecord(&stations[i]))
		}

		// A short non-empty page marks the end of the roster. An empty
		// page does not: providers have served blank pages mid-listing,
		// so later pages are still tried within the bound.
		if len(stations) > 0 && len(stations) < directoryPageSize {
			break
		}
	}

	if len(records) == 0 {
		return nil, monitor.ErrDirectoryEmpty
	}
	return records, nil
}

func (c *Client) fetchStationsPage(ctx context.Context, page int) ([]stationData, error) {
	url := fmt.Sprintf("%s/stations?page=%d&limit=%d", c.baseURL, page, directoryPageSize)

	var result stationsResponse
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}
	return result.Stations, nil
}

// CurrentReading fetches the latest sensor snapshot for one station.
func (c *Client) CurrentReading(ctx context.Context, stationID string) (*monitor.Reading, error) {
	url := fmt.Sprintf("%s/stations/%s/current", c.baseURL, stationID)

	var result currentData
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}
	return toReading(&result), nil
}

// getJSON performs an authenticated GET and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("skymesh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token revoked upstream before its claimed expiry.
		c.tokens.Invalidate()
		return fmt.Errorf("unexpected status %d from skymesh", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from skymesh", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode skymesh response: %w", err)
	}
	return nil
}

// toRecord converts API station data to a directory record.
func (c *Client) toRecord(s *stationData) monitor.StationRecord {
	location := s.City
	if s.Region != "" {
		location = strings.TrimPrefix(location+", "+s.Region, ", ")
	}

	installDate, _ := time.Parse("2006-01-02", s.InstallDate)

	rec := monitor.StationRecord{
		ID:          s.StationID,
		Name:        s.StationName,
		Location:    location,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		InstallDate: installDate,
	}
	if s.LastReading != nil {
		rec.Latest = toReading(s.LastReading)
	}
	return rec
}

// toReading converts a current-conditions payload to a provider-agnostic
// reading. Sensor placement is resolved here: only outdoor sensors feed the
// tracked fields, indoor and auxiliary sensors are ignored.
func toReading(d *currentData) *monitor.Reading {
	reading := &monitor.Reading{ProviderStatus: d.Status}

	if observedAt, err := time.Parse(time.RFC3339, d.ObservedAt); err == nil {
		reading.ObservedAt = observedAt
	}

	for i := range d.Sensors {
		s := &d.Sensors[i]
		if s.Placement != "outdoor" {
			continue
		}
		reading.HasOutdoor = true
		if s.Temperature != nil {
			reading.Temperature = s.Temperature
		}
		if s.Humidity != nil {
			reading.Humidity = s.Humidity
		}
		if s.Pressure != nil {
			reading.Pressure = s.Pressure
		}
		if s.WindSpeed != nil {
			reading.WindSpeed = s.WindSpeed
		}
	}
	return reading
}

// Ensure Client satisfies the sync cycle's provider contract.
var _ monitor.Provider = (*Client)(nil)
