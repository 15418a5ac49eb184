package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/types"
)

func newTestProcessor(t *testing.T, logEnabled bool, whitelist []string) *EventProcessor {
	t.Helper()
	serverNow := time.Date(2024, 7, 20, 13, 45, 30, 0, time.UTC)
	base := NewTimeContext(time.UTC, "", serverNow)
	return NewEventProcessor("app_1", "user_1", time.UTC, base, serverNow, logEnabled, whitelist)
}

func findUpdate(t *testing.T, plan EventPlan, shortName, segment string) store.Update {
	t.Helper()
	for _, u := range plan.Updates {
		if u.ShortName == shortName && u.Segment == segment {
			return u.Update
		}
	}
	t.Fatalf("no update for %s/%s", shortName, segment)
	return store.Update{}
}

func TestEventProcessorCountAndSum(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	plan := p.Process([]Event{
		{Key: "purchase", Count: 2, Sum: 9.98, HasSum: true},
	})

	assert.Equal(t, []string{"purchase"}, plan.CatalogKeys)
	require.Len(t, plan.Updates, 1)

	update := findUpdate(t, plan, "purchase", types.NoSegment)
	assert.Equal(t, float64(2), update.Inc["2024.7.20.c"])
	assert.Equal(t, float64(2), update.Inc["2024.7.20.13.c"])
	assert.Equal(t, 9.98, update.Inc["2024.7.20.s"])
}

func TestEventProcessorSegmentation(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	plan := p.Process([]Event{
		{
			Key:          "purchase",
			Count:        1,
			Sum:          4.99,
			HasSum:       true,
			Segmentation: map[string]string{"tier": "gold", "channel": "web"},
		},
	})

	// no-segment plus one document per segmentation key
	assert.Len(t, plan.Updates, 3)

	tier := findUpdate(t, plan, "purchase", "tier")
	assert.Equal(t, float64(1), tier.Inc["2024.7.20.gold.c"])
	assert.Equal(t, 4.99, tier.Inc["2024.7.20.gold.s"])
	// Segmented fills are two levels deep, no hourly bucket.
	assert.NotContains(t, tier.Inc, "2024.7.20.13.gold.c")

	noSeg := findUpdate(t, plan, "purchase", types.NoSegment)
	assert.ElementsMatch(t, []string{"gold"}, noSeg.AddToSet["meta.tier"])
	assert.ElementsMatch(t, []string{"web"}, noSeg.AddToSet["meta.channel"])
	assert.ElementsMatch(t, []string{"tier", "channel"}, noSeg.AddToSet["meta.segments"])

	assert.ElementsMatch(t, []string{"tier", "channel"}, plan.CatalogSegments["purchase"])
}

func TestEventProcessorLegacySegmentPair(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	plan := p.Process([]Event{
		{Key: "level_up", Count: 1, SegKey: "level", SegValue: "$12.5"},
	})

	update := findUpdate(t, plan, "level_up", "level")
	assert.Equal(t, float64(1), update.Inc["2024.7.20.12:5.c"])
}

func TestEventProcessorMergesRepeatedEvents(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	plan := p.Process([]Event{
		{Key: "purchase", Count: 1},
		{Key: "purchase", Count: 3},
	})

	require.Len(t, plan.Updates, 1)
	update := findUpdate(t, plan, "purchase", types.NoSegment)
	assert.Equal(t, float64(4), update.Inc["2024.7.20.c"])
	assert.Equal(t, []string{"purchase"}, plan.CatalogKeys)
}

func TestEventProcessorSkipsInvalidEvents(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	longKey := make([]byte, types.MaxCollectionNameLen)
	for i := range longKey {
		longKey[i] = 'x'
	}

	plan := p.Process([]Event{
		{Key: "", Count: 1},
		{Key: "no_count"},
		{Key: string(longKey), Count: 1},
	})

	assert.Empty(t, plan.Updates)
	assert.Empty(t, plan.CatalogKeys)
}

func TestEventProcessorSanitizesKey(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	plan := p.Process([]Event{
		{Key: "system.$login", Count: 1},
	})

	assert.Equal(t, []string{"login"}, plan.CatalogKeys)
}

func TestEventProcessorPerEventTimestamp(t *testing.T) {
	p := newTestProcessor(t, false, nil)

	// 2024-06-15 00:00:00 UTC
	plan := p.Process([]Event{
		{Key: "purchase", Count: 1, Timestamp: "1718409600"},
	})

	update := findUpdate(t, plan, "purchase", types.NoSegment)
	assert.Equal(t, float64(1), update.Inc["2024.6.15.c"])
	assert.NotContains(t, update.Inc, "2024.7.20.c")
}

func TestEventProcessorLog(t *testing.T) {
	tests := []struct {
		name       string
		logEnabled bool
		whitelist  []string
		wantKeys   []string
	}{
		{
			name:       "disabled log records nothing",
			logEnabled: false,
			wantKeys:   nil,
		},
		{
			name:       "empty whitelist records everything",
			logEnabled: true,
			wantKeys:   []string{"purchase", "login"},
		},
		{
			name:       "whitelist filters keys",
			logEnabled: true,
			whitelist:  []string{"purchase"},
			wantKeys:   []string{"purchase"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, tt.logEnabled, tt.whitelist)

			plan := p.Process([]Event{
				{Key: "purchase", Count: 1, Sum: 4.99, HasSum: true},
				{Key: "login", Count: 1},
			})

			var keys []string
			for _, record := range plan.LogRecords {
				keys = append(keys, record.Key)
				assert.NotEmpty(t, record.ID)
				assert.Equal(t, "app_1", record.AppID)
				assert.Equal(t, "user_1", record.UserID)
			}
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}
