package service

import (
	"time"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	"github.com/tallyhq/tally/internal/geo"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/publisher"
	"github.com/tallyhq/tally/internal/store"
)

// ServiceParams bundles the dependencies every service draws from so
// constructors stay short and wiring stays in one place.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Store  store.Store

	AppRepo  app.Repository
	UserRepo appuser.Repository

	Geo      geo.Resolver
	EventLog publisher.EventLogPublisher

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (p ServiceParams) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
