package memory

import (
	"context"
	"sync"

	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	ierr "github.com/tallyhq/tally/internal/errors"
)

// AppUserRepository is an in-memory user record store for local mode
// and tests.
type AppUserRepository struct {
	mu    sync.RWMutex
	users map[string]*appuser.AppUser
}

func NewAppUserRepository() *AppUserRepository {
	return &AppUserRepository{users: make(map[string]*appuser.AppUser)}
}

func userKey(appID, userID string) string {
	return appID + "/" + userID
}

func (r *AppUserRepository) Get(ctx context.Context, appID, userID string) (*appuser.AppUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.users[userKey(appID, userID)]
	if !ok {
		return nil, ierr.NewErrorf("app user %s not found", userID).
			Mark(ierr.ErrNotFound)
	}
	cp := *stored
	cp.Dimensions = append([]app.Dimension(nil), stored.Dimensions...)
	return &cp, nil
}

func (r *AppUserRepository) SetDimensions(ctx context.Context, appID, userID string, dims []app.Dimension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.upsert(appID, userID)
	u.Dimensions = append([]app.Dimension(nil), dims...)
	return nil
}

func (r *AppUserRepository) AddSessionDuration(ctx context.Context, appID, userID string, seconds int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.upsert(appID, userID)
	u.SessionDuration += seconds
	u.TotalSessionDuration += seconds
	return nil
}

func (r *AppUserRepository) ResetSessionDuration(ctx context.Context, appID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.upsert(appID, userID)
	u.SessionDuration = 0
	return nil
}

func (r *AppUserRepository) RecordSession(ctx context.Context, appID, userID string, props appuser.SessionProps) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.upsert(appID, userID)
	u.SessionCount++
	u.LastSeen = props.LastSeen
	if props.DeviceID != "" {
		u.DeviceID = props.DeviceID
	}
	if props.CountryCode != "" {
		u.CountryCode = props.CountryCode
	}
	if props.Device != "" {
		u.Device = props.Device
	}
	if props.Carrier != "" {
		u.Carrier = props.Carrier
	}
	if props.Platform != "" {
		u.Platform = props.Platform
	}
	if props.PlatformVersion != "" {
		u.PlatformVersion = props.PlatformVersion
	}
	if props.AppVersion != "" {
		u.AppVersion = props.AppVersion
	}
	return nil
}

func (r *AppUserRepository) upsert(appID, userID string) *appuser.AppUser {
	key := userKey(appID, userID)
	u, ok := r.users[key]
	if !ok {
		u = &appuser.AppUser{ID: userID, AppID: appID}
		r.users[key] = u
	}
	return u
}
