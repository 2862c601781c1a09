package testutil

import (
	"context"
	"sync"

	"github.com/samber/lo"
	"github.com/worksphere/billing/internal/domain/events"
	"github.com/worksphere/billing/internal/types"
)

// RecordingPublisher implements events.Publisher and keeps every distinct event
type RecordingPublisher struct {
	mu     sync.Mutex
	Err    error
	events []*events.BillingEvent
	seen   map[string]struct{}
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{seen: make(map[string]struct{})}
}

func (p *RecordingPublisher) Publish(_ context.Context, event *events.BillingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if _, ok := p.seen[event.ID]; ok {
		return nil
	}
	p.seen[event.ID] = struct{}{}
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Events() []*events.BillingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.BillingEvent(nil), p.events...)
}

func (p *RecordingPublisher) OfType(t types.EventType) []*events.BillingEvent {
	return lo.Filter(p.Events(), func(e *events.BillingEvent, _ int) bool { return e.Type == t })
}

func (p *RecordingPublisher) Count(t types.EventType) int {
	return len(p.OfType(t))
}
