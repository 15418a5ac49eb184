package types

import "strings"

// Metric codes follow the short db key map of the counter documents.
// Counter field paths stay compact because every bucket repeats them.
type MetricCode string

const (
	MetricEvents    MetricCode = "e"
	MetricTotal     MetricCode = "t"
	MetricNew       MetricCode = "n"
	MetricUnique    MetricCode = "u"
	MetricDuration  MetricCode = "d"
	MetricDurations MetricCode = "ds"
	MetricFrequency MetricCode = "f"
	MetricLoyalty   MetricCode = "l"
	MetricSum       MetricCode = "s"
	MetricCount     MetricCode = "c"
)

func (m MetricCode) String() string {
	return string(m)
}

// Built-in metric collections. Custom event collections are derived
// from the event key plus the owning application id.
const (
	CollectionApps          = "apps"
	CollectionAppUsers      = "app_users"
	CollectionSessions      = "sessions"
	CollectionUsers         = "users"
	CollectionLocations     = "locations"
	CollectionCities        = "cities"
	CollectionDevices       = "devices"
	CollectionCarriers      = "carriers"
	CollectionDeviceDetails = "device_details"
	CollectionAppVersions   = "app_versions"
	CollectionEvents        = "events"
)

const (
	// NoSegment is the synthetic segment bucket custom event counters
	// land in when no segmentation applies.
	NoSegment = "no-segment"

	// MaxCollectionNameLen is the store identifier length limit.
	MaxCollectionNameLen = 128
)

var eventKeyReplacer = strings.NewReplacer("system.", "", "$", "")

// SanitizeEventKey strips store-reserved substrings from a custom
// event key before it becomes part of a collection name.
func SanitizeEventKey(key string) string {
	return eventKeyReplacer.Replace(key)
}

// SanitizeFieldKey makes an arbitrary user-supplied string safe to use
// as a store field name: no leading "$", no "." path separators.
func SanitizeFieldKey(s string) string {
	s = strings.TrimPrefix(s, "$")
	return strings.ReplaceAll(s, ".", ":")
}
