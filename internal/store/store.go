package store

import (
	"context"
	"strings"
)

// Update is a single-document mutation. Field paths are dotted bucket
// keys ("2024.7.20.u", "meta.countries"). Each path is one flat field
// of the document; nesting only appears when a document is expanded
// for the read API.
type Update struct {
	// Inc adds a delta to each numeric field, creating it at zero.
	Inc map[string]float64
	// Set overwrites each field.
	Set map[string]string
	// AddToSet unions members into each set-valued field.
	AddToSet map[string][]string
}

func (u Update) IsZero() bool {
	return len(u.Inc) == 0 && len(u.Set) == 0 && len(u.AddToSet) == 0
}

// Document is one stored counter document. Field values are float64
// for counters, string for scalar fields and []string for sets.
type Document struct {
	ID     string
	Fields map[string]any
}

// Project returns a copy holding only the fields matching one of the
// given path prefixes. An empty prefix list keeps everything.
func (d Document) Project(prefixes []string) Document {
	if len(prefixes) == 0 {
		return d
	}
	out := Document{ID: d.ID, Fields: make(map[string]any)}
	for path, v := range d.Fields {
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, p+".") {
				out.Fields[path] = v
				break
			}
		}
	}
	return out
}

// Expand converts the flat field map into the nested object shape the
// read API serves, splitting dotted paths into sub-objects.
func (d Document) Expand() map[string]any {
	out := make(map[string]any)
	for path, v := range d.Fields {
		parts := strings.Split(path, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		if _, taken := node[leaf].(map[string]any); !taken {
			node[leaf] = v
		}
	}
	return out
}

// Store is the document-store contract the aggregation engine writes
// through. No operation is cross-document atomic; correctness relies
// on single-document increments being atomic and on updates being
// idempotent to re-resolution.
type Store interface {
	// Apply applies the update to one document, creating it first when
	// upsert is set and the document is absent.
	Apply(ctx context.Context, collection, id string, update Update, upsert bool) error

	// ApplyMulti applies the update to every existing document whose id
	// is in ids (no upsert) and reports how many documents matched.
	// Callers verify the count and fall back to per-document upserts.
	ApplyMulti(ctx context.Context, collection string, ids []string, update Update) (int, error)

	// FindOne fetches a document, optionally projected to the given
	// path prefixes. Returns ErrNotFound when absent.
	FindOne(ctx context.Context, collection, id string, fields []string) (Document, error)

	// Find fetches every document of a collection, optionally projected.
	Find(ctx context.Context, collection string, fields []string) ([]Document, error)

	// Exists reports whether a document is present.
	Exists(ctx context.Context, collection, id string) (bool, error)
}
