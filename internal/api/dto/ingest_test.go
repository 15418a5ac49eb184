package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(config.GetDefaultConfig())
	require.NoError(t, err)
	return log
}

func TestTrackRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     TrackRequest
		wantErr bool
	}{
		{"valid", TrackRequest{AppKey: "k", DeviceID: "d"}, false},
		{"missing app key", TrackRequest{DeviceID: "d"}, true},
		{"missing device id", TrackRequest{AppKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseMetrics(t *testing.T) {
	log := testLogger(t)

	t.Run("filters unknown keys", func(t *testing.T) {
		metrics := ParseMetrics(`{"_os":"Android","_secret":"x"}`, log)
		assert.Equal(t, map[string]string{"_os": "Android"}, metrics)
	})

	t.Run("carrier is title cased", func(t *testing.T) {
		metrics := ParseMetrics(`{"_carrier":"VERIZON wireless"}`, log)
		assert.Equal(t, "Verizon Wireless", metrics["_carrier"])
	})

	t.Run("os version is prefixed with the os initial", func(t *testing.T) {
		metrics := ParseMetrics(`{"_os":"Android","_os_version":"4.1"}`, log)
		assert.Equal(t, "a4.1", metrics["_os_version"])
	})

	t.Run("malformed json drops the parameter", func(t *testing.T) {
		assert.Nil(t, ParseMetrics(`{"_os":`, log))
	})

	t.Run("numeric values are stringified", func(t *testing.T) {
		metrics := ParseMetrics(`{"_app_version":2.1}`, log)
		assert.Equal(t, "2.1", metrics["_app_version"])
	})
}

func TestParseEvents(t *testing.T) {
	log := testLogger(t)

	t.Run("full event", func(t *testing.T) {
		events := ParseEvents(`[{"key":"purchase","count":2,"sum":9.98,"segmentation":{"tier":"gold"}}]`, log)
		require.Len(t, events, 1)
		assert.Equal(t, "purchase", events[0].Key)
		assert.Equal(t, float64(2), events[0].Count)
		assert.True(t, events[0].HasSum)
		assert.Equal(t, 9.98, events[0].Sum)
		assert.Equal(t, map[string]string{"tier": "gold"}, events[0].Segmentation)
	})

	t.Run("numeric strings are accepted", func(t *testing.T) {
		events := ParseEvents(`[{"key":"purchase","count":"3"}]`, log)
		require.Len(t, events, 1)
		assert.Equal(t, float64(3), events[0].Count)
	})

	t.Run("non numeric count stays zero", func(t *testing.T) {
		events := ParseEvents(`[{"key":"purchase","count":"lots"}]`, log)
		require.Len(t, events, 1)
		assert.Equal(t, float64(0), events[0].Count)
		assert.False(t, events[0].HasSum)
	})

	t.Run("per event timestamp is preserved", func(t *testing.T) {
		events := ParseEvents(`[{"key":"purchase","count":1,"timestamp":1721480000}]`, log)
		require.Len(t, events, 1)
		assert.Equal(t, "1721480000", events[0].Timestamp)
	})

	t.Run("legacy segment pair", func(t *testing.T) {
		events := ParseEvents(`[{"key":"level_up","count":1,"seg_key":"level","seg_val":"12"}]`, log)
		require.Len(t, events, 1)
		assert.Equal(t, "level", events[0].SegKey)
		assert.Equal(t, "12", events[0].SegValue)
	})

	t.Run("malformed json drops the parameter", func(t *testing.T) {
		assert.Nil(t, ParseEvents(`[{"key":`, log))
	})
}

func TestParseDimensions(t *testing.T) {
	log := testLogger(t)

	t.Run("sanitizes keys", func(t *testing.T) {
		dims := ParseDimensions(`{"$plan.tier":"pro"}`, nil, log)
		assert.Equal(t, map[string]string{"plan:tier": "pro"}, dims)
	})

	t.Run("whitelist filters keys", func(t *testing.T) {
		dims := ParseDimensions(`{"plan":"pro","age":"25"}`, []string{"plan"}, log)
		assert.Equal(t, map[string]string{"plan": "pro"}, dims)
	})

	t.Run("values are stringified", func(t *testing.T) {
		dims := ParseDimensions(`{"age":25}`, nil, log)
		assert.Equal(t, map[string]string{"age": "25"}, dims)
	})

	t.Run("malformed json drops the parameter", func(t *testing.T) {
		assert.Nil(t, ParseDimensions(`{"plan"`, nil, log))
	})
}
