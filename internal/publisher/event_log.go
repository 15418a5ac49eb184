package publisher

import (
	"context"
	"encoding/json"

	"github.com/tallyhq/tally/internal/config"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/kafka"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/types"
)

// EventRecord is a single raw event appended to the event log, kept
// alongside the aggregated counters so individual occurrences can be
// replayed or drilled into later.
type EventRecord struct {
	ID           string            `json:"_id"`
	AppID        string            `json:"app_id"`
	UserID       string            `json:"uid"`
	Key          string            `json:"key"`
	Timestamp    int64             `json:"ts"`
	Count        float64           `json:"c"`
	Sum          float64           `json:"s,omitempty"`
	Segmentation map[string]string `json:"sg,omitempty"`
}

// EventLogPublisher appends raw event records to the configured sink.
type EventLogPublisher interface {
	Publish(ctx context.Context, record *EventRecord) error
}

func NewEventLogPublisher(
	cfg *config.Configuration,
	log *logger.Logger,
	producer *kafka.Producer,
) (EventLogPublisher, error) {
	switch cfg.Events.Sink {
	case types.EventLogSinkKafka:
		if producer == nil {
			return nil, ierr.NewError("kafka producer is not initialized but the event log sink is kafka").
				Mark(ierr.ErrValidation)
		}
		return &kafkaPublisher{
			producer: producer,
			topic:    cfg.Kafka.Topic,
			log:      log,
		}, nil
	case types.EventLogSinkNoop:
		return noopPublisher{}, nil
	default:
		return nil, ierr.NewErrorf("unknown event log sink %q", cfg.Events.Sink).
			Mark(ierr.ErrValidation)
	}
}

type kafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

func (p *kafkaPublisher) Publish(ctx context.Context, record *EventRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return ierr.WithError(err).
			WithHint("encoding event record").
			Mark(ierr.ErrSystem)
	}

	p.log.Debugw("publishing event record", "event_id", record.ID, "key", record.Key)

	if err := p.producer.PublishWithID(p.topic, payload, record.ID); err != nil {
		return ierr.WithError(err).
			WithHint("publishing event record").
			Mark(ierr.ErrSystem)
	}
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, *EventRecord) error { return nil }
