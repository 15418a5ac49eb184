package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/tallyhq/tally/internal/config"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
)

// Location is the resolved position of a client IP.
type Location struct {
	Country string
	City    string
	Lat     float64
	Lng     float64
}

// Resolver maps a client IP to a location. Implementations return
// ok=false when the address cannot be resolved.
type Resolver interface {
	Lookup(ip string) (Location, bool)
	Close() error
}

// NewResolver opens the configured MaxMind database. Without a database
// path every lookup misses and callers fall back to their defaults.
func NewResolver(cfg *config.Configuration, log *logger.Logger) (Resolver, error) {
	if cfg.Geo.DBPath == "" {
		return noopResolver{}, nil
	}

	db, err := geoip2.Open(cfg.Geo.DBPath)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("opening geoip database at %s", cfg.Geo.DBPath).
			Mark(ierr.ErrSystem)
	}
	return &maxmindResolver{db: db, log: log}, nil
}

type maxmindResolver struct {
	db  *geoip2.Reader
	log *logger.Logger
}

func (r *maxmindResolver) Lookup(ip string) (Location, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, false
	}

	record, err := r.db.City(parsed)
	if err != nil {
		r.log.Debugw("geoip lookup failed", "ip", ip, "error", err)
		return Location{}, false
	}
	if record.Country.IsoCode == "" {
		return Location{}, false
	}

	return Location{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lng:     record.Location.Longitude,
	}, true
}

func (r *maxmindResolver) Close() error {
	return r.db.Close()
}

type noopResolver struct{}

func (noopResolver) Lookup(string) (Location, bool) { return Location{}, false }
func (noopResolver) Close() error                   { return nil }
