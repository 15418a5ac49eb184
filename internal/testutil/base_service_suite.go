package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	"github.com/tallyhq/tally/internal/geo"
	"github.com/tallyhq/tally/internal/logger"
	memoryRepo "github.com/tallyhq/tally/internal/repository/memory"
	memoryStore "github.com/tallyhq/tally/internal/store/memory"
)

// BaseServiceTestSuite provides common functionality for service test
// suites: an in-memory backend, a deterministic clock and a recording
// event log.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	logger   *logger.Logger
	config   *config.Configuration
	store    *memoryStore.Store
	appRepo  app.Repository
	userRepo appuser.Repository
	eventLog *InMemoryEventLogPublisher
	now      time.Time
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.now = time.Date(2024, 7, 20, 13, 45, 30, 0, time.UTC)
	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	s.store = memoryStore.NewStore()
	s.appRepo = memoryRepo.NewAppRepository()
	s.userRepo = memoryRepo.NewAppUserRepository()
	s.eventLog = NewInMemoryEventLogPublisher()
}

func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetStore() *memoryStore.Store {
	return s.store
}

func (s *BaseServiceTestSuite) GetAppRepo() app.Repository {
	return s.appRepo
}

func (s *BaseServiceTestSuite) GetUserRepo() appuser.Repository {
	return s.userRepo
}

func (s *BaseServiceTestSuite) GetEventLog() *InMemoryEventLogPublisher {
	return s.eventLog
}

// GetNow returns the suite's frozen clock.
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// AdvanceTime moves the frozen clock forward.
func (s *BaseServiceTestSuite) AdvanceTime(d time.Duration) {
	s.now = s.now.Add(d)
}

// SetNow pins the frozen clock to an exact instant.
func (s *BaseServiceTestSuite) SetNow(t time.Time) {
	s.now = t
}

// GetGeoResolver returns a resolver that never matches, so tests
// default to the Unknown location unless they stub their own.
func (s *BaseServiceTestSuite) GetGeoResolver() geo.Resolver {
	resolver, err := geo.NewResolver(s.config, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create geo resolver: %v", err)
	}
	return resolver
}
