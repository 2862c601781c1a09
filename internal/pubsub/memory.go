package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/worksphere/billing/internal/logger"
)

// MemoryPubSub is an in-process transport for local runs and tests
type MemoryPubSub struct {
	ch *gochannel.GoChannel
}

func NewMemoryPubSub(log *logger.Logger) *MemoryPubSub {
	return &MemoryPubSub{
		ch: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
			Persistent:          true,
		}, log.GetWatermillLogger()),
	}
}

func (p *MemoryPubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	return p.ch.Publish(topic, msg)
}

func (p *MemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.ch.Subscribe(ctx, topic)
}

func (p *MemoryPubSub) Close() error {
	return p.ch.Close()
}
