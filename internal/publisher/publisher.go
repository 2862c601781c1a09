package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/events"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
	"github.com/worksphere/billing/internal/pubsub"
)

// EventPublisher turns billing events into watermill messages. An event id is
// published at most once within the dedup window.
type EventPublisher struct {
	pubSub   pubsub.PubSub
	cache    cache.Cache
	logger   *logger.Logger
	topic    string
	dedupTTL time.Duration
}

func NewEventPublisher(ps pubsub.PubSub, c cache.Cache, cfg *config.Configuration, log *logger.Logger) events.Publisher {
	ttl := cfg.EventPublisher.DedupTTL
	if ttl <= 0 {
		ttl = cache.ExpiryEventDedup
	}
	return &EventPublisher{
		pubSub:   ps,
		cache:    c,
		logger:   log,
		topic:    cfg.EventPublisher.Topic,
		dedupTTL: ttl,
	}
}

func (p *EventPublisher) Publish(ctx context.Context, event *events.BillingEvent) error {
	if event == nil || event.ID == "" {
		return ierr.NewError("event id is required").
			WithHint("Billing events must carry a unique id").
			Mark(ierr.ErrValidation)
	}

	dedupKey := cache.PrefixEventDedup + event.ID
	if !p.cache.Add(ctx, dedupKey, true, p.dedupTTL) {
		p.logger.Debugw("skipping duplicate event", "event_id", event.ID, "event_type", event.Type)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.cache.Delete(ctx, dedupKey)
		return ierr.WithError(err).
			WithHint("Failed to marshal billing event").
			Mark(ierr.ErrValidation)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("tenant_id", event.TenantID)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set(pubsub.MetadataPartitionKey, event.PartitionKey())
	msg.SetContext(ctx)

	if err := p.pubSub.Publish(ctx, p.topic, msg); err != nil {
		// forget the id so a later attempt can publish it
		p.cache.Delete(ctx, dedupKey)
		p.logger.WithContext(ctx).Errorw("failed to publish billing event",
			"event_id", event.ID,
			"event_type", event.Type,
			"billing_cycle_id", event.BillingCycleID,
			"invoice_id", event.InvoiceID,
			"error", err,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish billing event").
			WithReportableDetails(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).
			Mark(ierr.ErrSystem)
	}

	p.logger.WithContext(ctx).Debugw("published billing event",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", p.topic,
	)
	return nil
}
