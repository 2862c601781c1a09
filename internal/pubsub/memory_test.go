package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/testutil"
)

func TestMemoryPubSub_RoundTrip(t *testing.T) {
	ps := NewMemoryPubSub(testutil.NewTestLogger())
	defer ps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := ps.Subscribe(ctx, "billing-events")
	require.NoError(t, err)

	out := message.NewMessage("evt_1", []byte(`{"type":"billing_started"}`))
	out.Metadata.Set(MetadataPartitionKey, "t1-billing_started-evt_1")
	require.NoError(t, ps.Publish(ctx, "billing-events", out))

	select {
	case in := <-msgs:
		assert.Equal(t, "evt_1", in.UUID)
		assert.Equal(t, "t1-billing_started-evt_1", in.Metadata.Get(MetadataPartitionKey))
		in.Ack()
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestPartitionKey_FallsBackToUUID(t *testing.T) {
	msg := message.NewMessage("evt_2", nil)
	key, err := partitionKey("billing-events", msg)
	require.NoError(t, err)
	assert.Equal(t, "evt_2", key)
}
