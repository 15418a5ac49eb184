package app

import (
	"time"
)

// Dimension is an unordered set of key/value string pairs a user can
// be segmented by. Once a dimension is assigned an id within an
// application's catalog, the id is immutable and reused for every
// future occurrence of the identical key/value set.
type Dimension struct {
	ID    string            `json:"id" dynamodbav:"id"`
	Attrs map[string]string `json:"attrs" dynamodbav:"attrs"`
}

// Level is the number of keys in the dimension.
func (d Dimension) Level() int {
	return len(d.Attrs)
}

// SameKeys reports whether both dimensions cover exactly the same key
// set, regardless of values.
func (d Dimension) SameKeys(other Dimension) bool {
	if len(d.Attrs) != len(other.Attrs) {
		return false
	}
	for k := range d.Attrs {
		if _, ok := other.Attrs[k]; !ok {
			return false
		}
	}
	return true
}

// Equal reports content equality: same key set and same values.
func (d Dimension) Equal(other Dimension) bool {
	if len(d.Attrs) != len(other.Attrs) {
		return false
	}
	for k, v := range d.Attrs {
		if ov, ok := other.Attrs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Merge returns a new dimension combining the attrs of both, with no
// id assigned. Later values win on key collisions.
func (d Dimension) Merge(other Dimension) Dimension {
	merged := make(map[string]string, len(d.Attrs)+len(other.Attrs))
	for k, v := range d.Attrs {
		merged[k] = v
	}
	for k, v := range other.Attrs {
		merged[k] = v
	}
	return Dimension{Attrs: merged}
}

// App is one registered application. Read on every request; mutated
// only when a new dimension combination is first observed.
type App struct {
	ID         string      `json:"id" dynamodbav:"id"`
	Key        string      `json:"key" dynamodbav:"app_key"`
	Name       string      `json:"name" dynamodbav:"name"`
	Timezone   string      `json:"timezone" dynamodbav:"timezone"`
	Country    string      `json:"country" dynamodbav:"country"`
	Dimensions []Dimension `json:"dimensions,omitempty" dynamodbav:"dimensions"`
}

// Location resolves the application timezone, falling back to UTC for
// unknown identifiers.
func (a *App) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FindDimension looks a dimension up by exact key-set-and-value match.
func (a *App) FindDimension(dim Dimension) (Dimension, bool) {
	for _, existing := range a.Dimensions {
		if existing.Equal(dim) {
			return existing, true
		}
	}
	return Dimension{}, false
}
