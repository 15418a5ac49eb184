package appuser

import (
	"context"

	"github.com/tallyhq/tally/internal/domain/app"
)

type Repository interface {
	// Get fetches a user record. Returns ErrNotFound when the device
	// has never been seen for this application.
	Get(ctx context.Context, appID, userID string) (*AppUser, error)

	// SetDimensions replaces the user's stored dimension assignment,
	// creating the record if needed.
	SetDimensions(ctx context.Context, appID, userID string, dims []app.Dimension) error

	// AddSessionDuration accumulates seconds into the running and
	// total session duration counters.
	AddSessionDuration(ctx context.Context, appID, userID string, seconds int64) error

	// ResetSessionDuration zeroes the running session duration after a
	// duration range has been recorded.
	ResetSessionDuration(ctx context.Context, appID, userID string) error

	// RecordSession increments the session count and refreshes the
	// session-scoped user properties.
	RecordSession(ctx context.Context, appID, userID string, props SessionProps) error
}
