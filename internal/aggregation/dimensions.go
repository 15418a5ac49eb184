package aggregation

import (
	"sort"

	"github.com/chanced/powerset"

	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/types"
)

// Resolution is the outcome of resolving a request's dimensions
// against the user's and the application's known dimensions.
type Resolution struct {
	// Dimensions is every dimension the request's counters fan out to,
	// each carrying its catalog id.
	Dimensions []app.Dimension
	// NewForApp holds the freshly minted dimensions that still need to
	// be appended to the application catalog.
	NewForApp []app.Dimension
	// UserChanged reports that the user's stored dimension set no
	// longer matches and must be rewritten.
	UserChanged bool
}

// ResolveDimensions merges the request's key/value pairs with the
// single-key dimensions the user carried before, optionally expands
// them into every non-empty combination, and assigns each combination
// its content-addressed catalog id. Requested keys are expected to be
// sanitized already.
func ResolveDimensions(requested map[string]string, userDims []app.Dimension, appDims []app.Dimension, userExists, cartesian bool) Resolution {
	res := Resolution{UserChanged: !userExists}

	// Single-key dimensions first, in stable key order so minted ids
	// do not depend on map iteration.
	keys := make([]string, 0, len(requested))
	for key := range requested {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	singles := make([]app.Dimension, 0, len(keys))
	for _, key := range keys {
		singles = append(singles, app.Dimension{Attrs: map[string]string{key: requested[key]}})
	}

	// Carry over the user's previous single-key dimensions that the
	// request does not override. An overridden value marks the user
	// record stale.
	for _, prev := range userDims {
		if prev.Level() != 1 {
			continue
		}
		overridden := false
		for _, dim := range singles {
			if dim.SameKeys(prev) {
				overridden = true
				if !dim.Equal(prev) {
					res.UserChanged = true
				}
				break
			}
		}
		if !overridden {
			singles = append(singles, app.Dimension{ID: prev.ID, Attrs: prev.Attrs})
		}
	}

	dimensions := singles
	if cartesian {
		dimensions = expand(singles)
	}

	for i := range dimensions {
		if existing, ok := findEqual(appDims, dimensions[i]); ok {
			dimensions[i].ID = existing.ID
		} else {
			dimensions[i].ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DIMENSION)
			res.NewForApp = append(res.NewForApp, dimensions[i])
		}
	}

	if len(userDims) < len(dimensions) {
		res.UserChanged = true
	}

	res.Dimensions = dimensions
	return res
}

// expand builds every non-empty combination of the single-key
// dimensions: [a b c] becomes [a b c ab ac bc abc] (2^n - 1 sets).
func expand(singles []app.Dimension) []app.Dimension {
	out := make([]app.Dimension, 0, 1<<len(singles)-1)
	for _, subset := range powerset.Compute(singles) {
		if len(subset) == 0 {
			continue
		}
		merged := app.Dimension{Attrs: subset[0].Attrs}
		for _, dim := range subset[1:] {
			merged = merged.Merge(dim)
		}
		out = append(out, merged)
	}
	return out
}

func findEqual(dims []app.Dimension, dim app.Dimension) (app.Dimension, bool) {
	for _, existing := range dims {
		if existing.Equal(dim) {
			return existing, true
		}
	}
	return app.Dimension{}, false
}
