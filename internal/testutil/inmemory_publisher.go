package testutil

import (
	"context"
	"sync"

	"github.com/tallyhq/tally/internal/publisher"
)

// InMemoryEventLogPublisher records published event records for
// assertions instead of shipping them to a broker.
type InMemoryEventLogPublisher struct {
	mu      sync.RWMutex
	records []*publisher.EventRecord
}

var _ publisher.EventLogPublisher = (*InMemoryEventLogPublisher)(nil)

func NewInMemoryEventLogPublisher() *InMemoryEventLogPublisher {
	return &InMemoryEventLogPublisher{}
}

func (p *InMemoryEventLogPublisher) Publish(_ context.Context, record *publisher.EventRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return nil
}

func (p *InMemoryEventLogPublisher) Records() []*publisher.EventRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*publisher.EventRecord(nil), p.records...)
}

func (p *InMemoryEventLogPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
}
