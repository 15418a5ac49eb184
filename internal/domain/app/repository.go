package app

import "context"

type Repository interface {
	// GetByKey fetches an application by its SDK key. Returns
	// ErrNotFound for unknown keys.
	GetByKey(ctx context.Context, key string) (*App, error)

	// AppendDimensions unions newly minted catalog entries into the
	// application record. Existing entries are never duplicated or
	// rewritten.
	AppendDimensions(ctx context.Context, appKey string, dims []Dimension) error

	// Create registers a new application.
	Create(ctx context.Context, app *App) error
}
