package repository

import (
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	ddb "github.com/tallyhq/tally/internal/dynamodb"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
	dynamodbRepo "github.com/tallyhq/tally/internal/repository/dynamodb"
	memoryRepo "github.com/tallyhq/tally/internal/repository/memory"
	"github.com/tallyhq/tally/internal/store"
	dynamodbStore "github.com/tallyhq/tally/internal/store/dynamodb"
	memoryStore "github.com/tallyhq/tally/internal/store/memory"
	"github.com/tallyhq/tally/internal/types"
)

func NewAppRepository(cfg *config.Configuration, client *ddb.Client, log *logger.Logger) (app.Repository, error) {
	switch cfg.Store.Driver {
	case types.StoreDriverMemory:
		return memoryRepo.NewAppRepository(), nil
	case types.StoreDriverDynamoDB:
		return dynamodbRepo.NewAppRepository(client, cfg, log), nil
	default:
		return nil, ierr.NewErrorf("unknown store driver %q", cfg.Store.Driver).
			Mark(ierr.ErrValidation)
	}
}

func NewAppUserRepository(cfg *config.Configuration, client *ddb.Client, log *logger.Logger) (appuser.Repository, error) {
	switch cfg.Store.Driver {
	case types.StoreDriverMemory:
		return memoryRepo.NewAppUserRepository(), nil
	case types.StoreDriverDynamoDB:
		return dynamodbRepo.NewAppUserRepository(client, cfg, log), nil
	default:
		return nil, ierr.NewErrorf("unknown store driver %q", cfg.Store.Driver).
			Mark(ierr.ErrValidation)
	}
}

func NewMetricStore(cfg *config.Configuration, client *ddb.Client, log *logger.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case types.StoreDriverMemory:
		return memoryStore.NewStore(), nil
	case types.StoreDriverDynamoDB:
		return dynamodbStore.NewStore(client, cfg, log), nil
	default:
		return nil, ierr.NewErrorf("unknown store driver %q", cfg.Store.Driver).
			Mark(ierr.ErrValidation)
	}
}
