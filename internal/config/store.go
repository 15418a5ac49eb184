package config

import "github.com/tallyhq/tally/internal/types"

// StoreConfig selects the document store backing the counter
// collections and the application/user records.
type StoreConfig struct {
	Driver   types.StoreDriver `mapstructure:"driver" validate:"required"`
	DynamoDB DynamoDBConfig    `mapstructure:"dynamodb"`
}

// DynamoDBConfig holds configuration for DynamoDB
type DynamoDBConfig struct {
	Region        string `mapstructure:"region"`
	MetricsTable  string `mapstructure:"metrics_table"`
	AppsTable     string `mapstructure:"apps_table"`
	AppUsersTable string `mapstructure:"app_users_table"`
}
