// Package weatherlink provides a client for the Davis WeatherLink v2 API.
//
// WeatherLink signs every request with an HMAC over the query parameters and
// reports imperial units. It carries no per-station status flag, so
// deployments on this provider rely on the stuck-reading classification
// strategy.
package weatherlink

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "weatherlink"

	// DefaultBaseURL is the base URL for the WeatherLink v2 API.
	DefaultBaseURL = "https://api.weatherlink.com/v2"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the WeatherLink client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// APIKey and APISecret are the WeatherLink credentials. The secret is
	// only used for signing and never leaves the process.
	APIKey    string
	APISecret string

	// ConvertToCelsius converts temperatures from the API's Fahrenheit
	// before they are stored.
	ConvertToCelsius bool

	// HTTPClient executes API requests. Defaults to a resilient client.
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a WeatherLink v2 API client.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	convert    bool
	httpClient HTTPDoer
	logger     zerolog.Logger

	now func() time.Time
}

// NewClient creates a new WeatherLink client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		convert:    cfg.ConvertToCelsius,
		httpClient: httpClient,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// sign computes the request signature: parameters sorted by name, each
// concatenated as name followed by value, HMAC-SHA256 over the result with
// the API secret, hex encoded. The secret itself is never a parameter.
func sign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	for _, k := range keys {
		payload.WriteString(k)
		payload.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// API response types (from the WeatherLink v2 API).

type stationsResponse struct {
	Stations []stationData `json:"stations"`
}

type stationData struct {
	StationID      int64   `json:"station_id"`
	StationName    string  `json:"station_name"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Country        string  `json:"country"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	RecordingStart string  `json:"recording_start"`
}

type currentResponse struct {
	StationID int64        `json:"station_id"`
	Sensors   []sensorData `json:"sensors"`
}

type sensorData struct {
	LSID int64                    `json:"lsid"`
	Data []map[string]json.Number `json:"data"`
}

// ListStations retrieves the station roster. The v2 API returns every
// station visible to the key in a single response.
func (c *Client) ListStations(ctx context.Context) ([]monitor.StationRecord, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	params := map[string]string{
		"api-key": c.apiKey,
		"t":       timestamp,
	}

	query := url.Values{}
	query.Set("api-key", c.apiKey)
	query.Set("t", timestamp)
	query.Set("api-signature", sign(c.apiSecret, params))

	var result stationsResponse
	if err := c.getJSON(ctx, c.baseURL+"/stations?"+query.Encode(), &result); err != nil {
		return nil, err
	}

	if len(result.Stations) == 0 {
		return nil, monitor.ErrDirectoryEmpty
	}

	records := make([]monitor.StationRecord, 0, len(result.Stations))
	for i := range result.Stations {
		records = append(records, toRecord(&result.Stations[i]))
	}
	return records, nil
}

// CurrentReading fetches the latest sensor snapshot for one station. The
// station id goes in the path but is still part of the signed parameters.
func (c *Client) CurrentReading(ctx context.Context, stationID string) (*monitor.Reading, error) {
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	params := map[string]string{
		"api-key":    c.apiKey,
		"station-id": stationID,
		"t":          timestamp,
	}

	query := url.Values{}
	query.Set("api-key", c.apiKey)
	query.Set("t", timestamp)
	query.Set("api-signature", sign(c.apiSecret, params))

	requestURL := fmt.Sprintf("%s/current/%s?%s", c.baseURL, url.PathEscape(stationID), query.Encode())

	var result currentResponse
	if err := c.getJSON(ctx, requestURL, &result); err != nil {
		return nil, err
	}
	return c.toReading(&result), nil
}

func (c *Client) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weatherlink request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from weatherlink", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode weatherlink response: %w", err)
	}
	return nil
}

func toRecord(s *stationData) monitor.StationRecord {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.City, s.State, s.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	installDate, _ := time.Parse("2006-01-02", s.RecordingStart)

	return monitor.StationRecord{
		ID:          strconv.FormatInt(s.StationID, 10),
		Name:        s.StationName,
		Location:    strings.Join(parts, ", "),
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		InstallDate: installDate,
	}
}

// toReading extracts outdoor conditions from the sensor array. A sensor
// block is treated as outdoor when it reports an air temperature or a wind
// speed; indoor console blocks report neither.
func (c *Client) toReading(resp *currentResponse) *monitor.Reading {
	reading := &monitor.Reading{}

	for i := range resp.Sensors {
		sensor := &resp.Sensors[i]
		if len(sensor.Data) == 0 {
			continue
		}
		data := sensor.Data[0]

		temp, hasTemp := numberField(data, "temp")
		windSpeed, hasWind := numberField(data, "wind_speed_last")
		if !hasTemp && !hasWind {
			continue
		}

		reading.HasOutdoor = true
		if hasTemp {
			if c.convert {
				temp = fahrenheitToCelsius(temp)
			}
			reading.Temperature = &temp
		}
		if hasWind {
			reading.WindSpeed = &windSpeed
		}
		if hum, ok := numberField(data, "hum"); ok {
			reading.Humidity = &hum
		}
		if bar, ok := numberField(data, "bar"); ok {
			reading.Pressure = &bar
		}
		if ts, ok := numberField(data, "ts"); ok {
			reading.ObservedAt = time.Unix(int64(ts), 0).UTC()
		}
	}

	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = c.now().UTC()
	}
	return reading
}

func numberField(data map[string]json.Number, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok {
		return 0, false
	}
	v, err := raw.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// fahrenheitToCelsius converts and rounds to one decimal place.
func fahrenheitToCelsius(f float64) float64 {
	return math.Round((f-32)*5/9*10) / 10
}

var _ monitor.Provider = (*Client)(nil)
