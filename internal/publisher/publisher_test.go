package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/cache"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/events"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/testutil"
	"github.com/worksphere/billing/internal/types"
)

// MockPubSub is a mock implementation of pubsub.PubSub
type MockPubSub struct {
	mock.Mock
}

func (m *MockPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

func (m *MockPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	args := m.Called(ctx, topic)
	return args.Get(0).(<-chan *message.Message), args.Error(1)
}

func (m *MockPubSub) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestPublisher(ps *MockPubSub) events.Publisher {
	cfg := config.GetDefaultConfig()
	c := cache.NewInMemoryCache(config.CacheConfig{Enabled: true})
	return NewEventPublisher(ps, c, cfg, testutil.NewTestLogger())
}

func TestPublish_SetsMetadata(t *testing.T) {
	ps := new(MockPubSub)
	pub := newTestPublisher(ps)

	event := events.NewBillingEvent("tenant-1", types.EventInvoiceGenerated, map[string]interface{}{"total": "1190.00"}).
		WithCycle("bc_1").
		WithInvoice("inv_1")

	ps.On("Publish", mock.Anything, "billing-events", mock.MatchedBy(func(msg *message.Message) bool {
		var decoded events.BillingEvent
		if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
			return false
		}
		return msg.UUID == event.ID &&
			msg.Metadata.Get("tenant_id") == "tenant-1" &&
			msg.Metadata.Get("event_type") == "invoice_generated" &&
			msg.Metadata.Get("partition_key") == "tenant-1-invoice_generated-"+event.ID &&
			decoded.InvoiceID == "inv_1"
	})).Return(nil).Once()

	require.NoError(t, pub.Publish(context.Background(), event))
	ps.AssertExpectations(t)
}

func TestPublish_DeduplicatesByEventID(t *testing.T) {
	ps := new(MockPubSub)
	pub := newTestPublisher(ps)

	event := events.NewBillingEvent("tenant-1", types.EventBillingStarted, nil)
	ps.On("Publish", mock.Anything, "billing-events", mock.Anything).Return(nil).Once()

	require.NoError(t, pub.Publish(context.Background(), event))
	require.NoError(t, pub.Publish(context.Background(), event))
	ps.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPublish_FailureAllowsRepublish(t *testing.T) {
	ps := new(MockPubSub)
	pub := newTestPublisher(ps)

	event := events.NewBillingEvent("tenant-1", types.EventPaymentSuccess, nil)
	ps.On("Publish", mock.Anything, "billing-events", mock.Anything).Return(assert.AnError).Once()
	ps.On("Publish", mock.Anything, "billing-events", mock.Anything).Return(nil).Once()

	err := pub.Publish(context.Background(), event)
	require.Error(t, err)
	assert.True(t, ierr.IsSystem(err))

	require.NoError(t, pub.Publish(context.Background(), event))
	ps.AssertNumberOfCalls(t, "Publish", 2)
}

func TestPublish_RejectsMissingID(t *testing.T) {
	pub := newTestPublisher(new(MockPubSub))
	err := pub.Publish(context.Background(), &events.BillingEvent{TenantID: "tenant-1"})
	assert.True(t, ierr.IsValidation(err))
}
