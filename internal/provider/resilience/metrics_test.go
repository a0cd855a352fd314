package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationpulse/stationpulse/internal/provider/resilience"
)

func TestNewMetrics(t *testing.T) {
	m, err := resilience.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMetrics_RecordRequest(t *testing.T) {
	m, err := resilience.NewMetrics()
	require.NoError(t, err)

	// Should not panic
	m.RecordRequest("skymesh", 120*time.Millisecond, nil)
	m.RecordRequest("skymesh", 2*time.Second, errors.New("timeout"))
}
