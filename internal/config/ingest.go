package config

import "github.com/tallyhq/tally/internal/types"

// UsersConfig controls per-user identity and dimension handling.
type UsersConfig struct {
	// HashDeviceIDs derives the app user id as a salted hash of
	// app key + device id instead of using the raw device id.
	HashDeviceIDs bool `mapstructure:"hash_device_ids"`
	// Cartesian expands a user's single-key dimensions into the full
	// set of non-empty combinations.
	Cartesian bool `mapstructure:"cartesian"`
	// Dimensions enables user dimension tracking entirely.
	Dimensions bool `mapstructure:"dimensions"`
	// DimensionsWhitelist restricts which dimension keys are accepted.
	// Empty means all keys are accepted.
	DimensionsWhitelist []string `mapstructure:"dimensions_whitelist"`
}

// EventsConfig controls the append-only event record log.
type EventsConfig struct {
	// Log enables appending raw event records to the log sink.
	Log bool `mapstructure:"log"`
	// Whitelist restricts which event keys are logged. Empty means
	// all keys are logged.
	Whitelist []string `mapstructure:"whitelist"`
	// Sink selects the log destination.
	Sink types.EventLogSink `mapstructure:"sink"`
}

// GeoConfig points at the MaxMind database used for IP geolocation.
// An empty path disables lookups and every user resolves to Unknown.
type GeoConfig struct {
	DBPath string `mapstructure:"db_path"`
}
