package types

type RunMode string

const (
	// ModeLocal runs the API server against the in-memory store
	ModeLocal RunMode = "local"
	// ModeAPI runs the API server against the configured backends
	ModeAPI RunMode = "api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)

type StoreDriver string

const (
	StoreDriverMemory   StoreDriver = "memory"
	StoreDriverDynamoDB StoreDriver = "dynamodb"
)

type EventLogSink string

const (
	EventLogSinkNoop  EventLogSink = "noop"
	EventLogSinkKafka EventLogSink = "kafka"
)
