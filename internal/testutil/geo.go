package testutil

import "github.com/tallyhq/tally/internal/geo"

// StubGeoResolver answers every lookup with a fixed location.
type StubGeoResolver struct {
	Location geo.Location
	OK       bool
}

var _ geo.Resolver = (*StubGeoResolver)(nil)

func (r StubGeoResolver) Lookup(string) (geo.Location, bool) {
	return r.Location, r.OK
}

func (r StubGeoResolver) Close() error {
	return nil
}
