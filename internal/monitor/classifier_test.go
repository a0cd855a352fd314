package monitor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stationpulse/stationpulse/internal/monitor"
)

func ptr(v float64) *float64 { return &v }

func logEntry(temp, hum, wind, press *float64) *monitor.StatusLogEntry {
	return &monitor.StatusLogEntry{
		StationID:   "ST-1",
		Timestamp:   time.Now(),
		Online:      true,
		Temperature: temp,
		Humidity:    hum,
		WindSpeed:   wind,
		Pressure:    press,
	}
}

func TestStuckReadingClassifier_NoOutdoorData(t *testing.T) {
	classifier := monitor.StuckReadingClassifier{}

	history := []*monitor.StatusLogEntry{
		logEntry(ptr(20), ptr(50), ptr(3), ptr(1013)),
		logEntry(ptr(21), ptr(51), ptr(4), ptr(1014)),
	}

	// No outdoor sensor feed classifies offline regardless of history.
	c := classifier.Classify(&monitor.Reading{HasOutdoor: false}, history)
	assert.False(t, c.Online)

	c = classifier.Classify(nil, history)
	assert.False(t, c.Online)
}

func TestStuckReadingClassifier_InsufficientHistory(t *testing.T) {
	classifier := monitor.StuckReadingClassifier{}
	reading := &monitor.Reading{
		HasOutdoor:  true,
		Temperature: ptr(20.0),
		Humidity:    ptr(50),
		WindSpeed:   ptr(3),
		Pressure:    ptr(1013),
	}

	c := classifier.Classify(reading, nil)
	assert.True(t, c.Online, "zero prior entries defaults to online")

	c = classifier.Classify(reading, []*monitor.StatusLogEntry{
		logEntry(ptr(20.0), ptr(50), ptr(3), ptr(1013)),
	})
	assert.True(t, c.Online, "one prior entry defaults to online")
}

func TestStuckReadingClassifier_StuckValues(t *testing.T) {
	classifier := monitor.StuckReadingClassifier{}
	reading := &monitor.Reading{
		HasOutdoor:  true,
		Temperature: ptr(20.0),
		Humidity:    ptr(50),
		WindSpeed:   ptr(3),
		Pressure:    ptr(1013),
	}

	history := []*monitor.StatusLogEntry{
		logEntry(ptr(20.0), ptr(50), ptr(3), ptr(1013)),
		logEntry(ptr(20.0), ptr(50), ptr(3), ptr(1013)),
	}

	c := classifier.Classify(reading, history)
	assert.False(t, c.Online, "identical values across three checks is a stuck feed")
	assert.Equal(t, 20.0, *c.Temperature)
}

func TestStuckReadingClassifier_SingleFieldChangeIsOnline(t *testing.T) {
	classifier := monitor.StuckReadingClassifier{}

	base := func() *monitor.Reading {
		return &monitor.Reading{
			HasOutdoor:  true,
			Temperature: ptr(20.0),
			Humidity:    ptr(50),
			WindSpeed:   ptr(3),
			Pressure:    ptr(1013),
		}
	}
	history := []*monitor.StatusLogEntry{
		logEntry(ptr(20.0), ptr(50), ptr(3), ptr(1013)),
		logEntry(ptr(20.0), ptr(50), ptr(3), ptr(1013)),
	}

	cases := map[string]func(*monitor.Reading){
		"temperature": func(r *monitor.Reading) { r.Temperature = ptr(21.0) },
		"humidity":    func(r *monitor.Reading) { r.Humidity = ptr(55) },
		"wind_speed":  func(r *monitor.Reading) { r.WindSpeed = ptr(4) },
		"pressure":    func(r *monitor.Reading) { r.Pressure = ptr(1014) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			reading := base()
			mutate(reading)
			c := classifier.Classify(reading, history)
			assert.True(t, c.Online, "any differing field keeps the station online")
		})
	}
}

func TestStuckReadingClassifier_MissingFieldsCompareEqual(t *testing.T) {
	classifier := monitor.StuckReadingClassifier{}

	// A wind-only station: temperature absent everywhere. Absent values
	// compare identical, so unchanged wind across three checks is stuck.
	reading := &monitor.Reading{
		HasOutdoor: true,
		WindSpeed:  ptr(5),
	}
	history := []*monitor.StatusLogEntry{
		logEntry(nil, nil, ptr(5), nil),
		logEntry(nil, nil, ptr(5), nil),
	}

	c := classifier.Classify(reading, history)
	assert.False(t, c.Online)
}

func TestProviderStatusClassifier(t *testing.T) {
	classifier := monitor.ProviderStatusClassifier{}

	c := classifier.Classify(&monitor.Reading{ProviderStatus: "Active", Temperature: ptr(18)}, nil)
	assert.True(t, c.Online)
	assert.Equal(t, 18.0, *c.Temperature)

	c = classifier.Classify(&monitor.Reading{ProviderStatus: "Suspended"}, nil)
	assert.False(t, c.Online)

	c = classifier.Classify(nil, nil)
	assert.False(t, c.Online)
}

func TestProviderStatusClassifier_CustomVocabulary(t *testing.T) {
	classifier := monitor.ProviderStatusClassifier{ActiveValue: "ONLINE"}

	c := classifier.Classify(&monitor.Reading{ProviderStatus: "ONLINE"}, nil)
	assert.True(t, c.Online)

	c = classifier.Classify(&monitor.Reading{ProviderStatus: "Active"}, nil)
	assert.False(t, c.Online)
}

func TestNewClassifier(t *testing.T) {
	assert.IsType(t, monitor.StuckReadingClassifier{}, monitor.NewClassifier(monitor.StrategyStuckReading, ""))
	assert.IsType(t, monitor.ProviderStatusClassifier{}, monitor.NewClassifier(monitor.StrategyProviderStatus, "Active"))
	assert.IsType(t, monitor.StuckReadingClassifier{}, monitor.NewClassifier("bogus", ""))
}
