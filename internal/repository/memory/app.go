package memory

import (
	"context"
	"sync"

	"github.com/tallyhq/tally/internal/domain/app"
	ierr "github.com/tallyhq/tally/internal/errors"
)

// AppRepository is an in-memory application catalog for local mode and
// tests.
type AppRepository struct {
	mu   sync.RWMutex
	apps map[string]*app.App // keyed by SDK key
}

func NewAppRepository() *AppRepository {
	return &AppRepository{apps: make(map[string]*app.App)}
}

func (r *AppRepository) GetByKey(ctx context.Context, key string) (*app.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.apps[key]
	if !ok {
		return nil, ierr.NewErrorf("application with key %q not found", key).
			Mark(ierr.ErrNotFound)
	}
	return copyApp(stored), nil
}

func (r *AppRepository) AppendDimensions(ctx context.Context, appKey string, dims []app.Dimension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.apps[appKey]
	if !ok {
		return ierr.NewErrorf("application with key %q not found", appKey).
			Mark(ierr.ErrNotFound)
	}
	for _, dim := range dims {
		if _, exists := findEqual(stored.Dimensions, dim); !exists {
			stored.Dimensions = append(stored.Dimensions, dim)
		}
	}
	return nil
}

func (r *AppRepository) Create(ctx context.Context, a *app.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.apps[a.Key]; exists {
		return ierr.NewErrorf("application with key %q already exists", a.Key).
			Mark(ierr.ErrAlreadyExists)
	}
	r.apps[a.Key] = copyApp(a)
	return nil
}

func findEqual(dims []app.Dimension, dim app.Dimension) (app.Dimension, bool) {
	for _, existing := range dims {
		if existing.Equal(dim) {
			return existing, true
		}
	}
	return app.Dimension{}, false
}

func copyApp(a *app.App) *app.App {
	cp := *a
	cp.Dimensions = append([]app.Dimension(nil), a.Dimensions...)
	return &cp
}
