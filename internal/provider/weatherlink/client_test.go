package weatherlink_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpulse/stationpulse/internal/monitor"
	"github.com/stationpulse/stationpulse/internal/provider/weatherlink"
)

const (
	testAPIKey    = "test-key"
	testAPISecret = "test-secret"
)

func newTestClient(t *testing.T, convert bool, handler http.HandlerFunc) *weatherlink.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return weatherlink.NewClient(weatherlink.ClientConfig{
		BaseURL:          server.URL,
		APIKey:           testAPIKey,
		APISecret:        testAPISecret,
		ConvertToCelsius: convert,
		HTTPClient:       http.DefaultClient,
		Logger:           zerolog.New(io.Discard),
	})
}

// expectedSignature mirrors the API's verification: parameters sorted by
// name, concatenated as name then value, HMAC-SHA256 hex with the secret.
func expectedSignature(pairs ...string) string {
	var payload string
	for _, p := range pairs {
		payload += p
	}
	mac := hmac.New(sha256.New, []byte(testAPISecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestClient_ListStations(t *testing.T) {
	client := newTestClient(t, false, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stations", r.URL.Path)

		q := r.URL.Query()
		require.Equal(t, testAPIKey, q.Get("api-key"))
		ts := q.Get("t")
		require.NotEmpty(t, ts)
		want := expectedSignature("api-key", testAPIKey, "t", ts)
		require.Equal(t, want, q.Get("api-signature"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"stations": []map[string]interface{}{
				{
					"station_id":      117740,
					"station_name":    "Harbour Pier",
					"city":            "Galway",
					"country":         "Ireland",
					"latitude":        53.27,
					"longitude":       -9.05,
					"recording_start": "2022-06-01",
				},
			},
		})
	})

	records, err := client.ListStations(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "117740", records[0].ID)
	assert.Equal(t, "Harbour Pier", records[0].Name)
	assert.Equal(t, "Galway, Ireland", records[0].Location)
	assert.Equal(t, 2022, records[0].InstallDate.Year())
}

func TestClient_ListStationsEmpty(t *testing.T) {
	client := newTestClient(t, false, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"stations": []interface{}{}})
	})

	_, err := client.ListStations(context.Background())
	assert.ErrorIs(t, err, monitor.ErrDirectoryEmpty)
}

func TestClient_CurrentReadingSignsStationID(t *testing.T) {
	client := newTestClient(t, false, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/current/117740", r.URL.Path)

		q := r.URL.Query()
		ts := q.Get("t")
		// The station id rides in the path but is still signed.
		want := expectedSignature("api-key", testAPIKey, "station-id", "117740", "t", ts)
		require.Equal(t, want, q.Get("api-signature"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"station_id": 117740,
			"sensors": []map[string]interface{}{
				{
					"lsid": 421,
					"data": []map[string]interface{}{
						{"temp": 68.4, "hum": 55.0, "bar": 29.92, "wind_speed_last": 3.0, "ts": 1756550280},
					},
				},
			},
		})
	})

	reading, err := client.CurrentReading(context.Background(), "117740")
	require.NoError(t, err)
	assert.True(t, reading.HasOutdoor)
	require.NotNil(t, reading.Temperature)
	assert.InDelta(t, 68.4, *reading.Temperature, 0.001)
	require.NotNil(t, reading.Pressure)
	assert.InDelta(t, 29.92, *reading.Pressure, 0.001)
	assert.Equal(t, int64(1756550280), reading.ObservedAt.Unix())
}

func TestClient_CurrentReadingConvertsToCelsius(t *testing.T) {
	client := newTestClient(t, true, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sensors": []map[string]interface{}{
				{"data": []map[string]interface{}{{"temp": 68.4}}},
			},
		})
	})

	reading, err := client.CurrentReading(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, reading.Temperature)
	// 68.4F is 20.22C, rounded to one decimal.
	assert.InDelta(t, 20.2, *reading.Temperature, 0.001)
}

func TestClient_CurrentReadingIndoorOnly(t *testing.T) {
	client := newTestClient(t, false, func(w http.ResponseWriter, _ *http.Request) {
		// A console block reports indoor values under different keys.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sensors": []map[string]interface{}{
				{"data": []map[string]interface{}{{"temp_in": 71.0, "hum_in": 40.0}}},
			},
		})
	})

	reading, err := client.CurrentReading(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, reading.HasOutdoor)
	assert.Nil(t, reading.Temperature)
}

func TestClient_CurrentReadingUpstreamError(t *testing.T) {
	client := newTestClient(t, false, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.CurrentReading(context.Background(), "999")
	assert.Error(t, err)
}
