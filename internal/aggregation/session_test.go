package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationRange(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0"},
		{10, "0"},
		{11, "1"},
		{30, "1"},
		{31, "2"},
		{60, "2"},
		{61, "3"},
		{180, "3"},
		{181, "4"},
		{600, "4"},
		{601, "5"},
		{1800, "5"},
		{1801, "6"},
		{3600, "6"},
		{3601, "7"},
		{999999, "7"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DurationRange(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestFrequencyRange(t *testing.T) {
	tests := []struct {
		elapsed int64
		want    string
	}{
		{0, "0"},
		{3599, "0"},
		{3600, "1"},
		{24*3600 - 1, "1"},
		{24 * 3600, "2"},
		{48 * 3600, "3"},
		{168 * 3600, "8"},
		{360 * 3600, "10"},
		{744*3600 - 1, "10"},
		{744 * 3600, "11"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FrequencyRange(tt.elapsed), "elapsed=%d", tt.elapsed)
	}
}

func TestLoyaltyRange(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{1, "0"},
		{2, "1"},
		{3, "2"},
		{5, "2"},
		{6, "3"},
		{10, "4"},
		{20, "5"},
		{50, "6"},
		{100, "7"},
		{499, "7"},
		{500, "8"},
		{12345, "8"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LoyaltyRange(tt.count), "count=%d", tt.count)
	}
}

func TestUniqueLevels(t *testing.T) {
	serverNow := time.Date(2024, 7, 20, 13, 45, 30, 0, time.UTC)
	tc := NewTimeContext(time.UTC, "", serverNow)

	tests := []struct {
		name       string
		lastSeen   time.Time
		wantLevels []string
		wantHourly bool
	}{
		{
			name:       "seen minutes ago within the same hour",
			lastSeen:   serverNow.Add(-10 * time.Minute),
			wantLevels: nil,
			wantHourly: false,
		},
		{
			name:       "seen in a previous hour today",
			lastSeen:   serverNow.Add(-2 * time.Hour),
			wantLevels: nil,
			wantHourly: true,
		},
		{
			name:       "seen yesterday",
			lastSeen:   time.Date(2024, 7, 19, 23, 0, 0, 0, time.UTC),
			wantLevels: []string{"2024.7.20"},
			wantHourly: true,
		},
		{
			name:       "seen last week",
			lastSeen:   time.Date(2024, 7, 10, 10, 0, 0, 0, time.UTC),
			wantLevels: []string{"2024.w29", "2024.7.20"},
			wantHourly: true,
		},
		{
			name:       "seen exactly at the month boundary",
			lastSeen:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			wantLevels: []string{"2024.w29", "2024.7.20", "2024.7"},
			wantHourly: true,
		},
		{
			name:       "seen two months ago",
			lastSeen:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantLevels: []string{"2024.w29", "2024.7.20", "2024.7", "2024"},
			wantHourly: true,
		},
		{
			name:       "seen last year",
			lastSeen:   time.Date(2023, 11, 1, 10, 0, 0, 0, time.UTC),
			wantLevels: []string{"2024.7.20", "2024.7", "2024"},
			wantHourly: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels, hourly := UniqueLevels(tc, tt.lastSeen.Unix(), time.UTC)
			assert.Equal(t, tt.wantLevels, levels)
			assert.Equal(t, tt.wantHourly, hourly)
		})
	}
}
