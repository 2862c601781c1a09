package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/worksphere/billing/internal/config"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/kafka"
	"github.com/worksphere/billing/internal/logger"
)

// MetadataPartitionKey is the message metadata key used to pick the partition
const MetadataPartitionKey = "partition_key"

// KafkaPubSub publishes through watermill-kafka. The subscriber is created
// lazily so publish-only processes never join a consumer group.
type KafkaPubSub struct {
	cfg           config.KafkaConfig
	logger        watermill.LoggerAdapter
	publisher     *wmkafka.Publisher
	subscriber    *wmkafka.Subscriber
	consumerGroup string
}

func NewKafkaPubSub(cfg config.KafkaConfig, log *logger.Logger, consumerGroup string) (*KafkaPubSub, error) {
	wmLogger := log.GetWatermillLogger()

	publisher, err := wmkafka.NewPublisher(wmkafka.PublisherConfig{
		Brokers:               cfg.Brokers,
		Marshaler:             wmkafka.NewWithPartitioningMarshaler(partitionKey),
		OverwriteSaramaConfig: kafka.GetSaramaConfig(cfg),
	}, wmLogger)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create kafka publisher").
			WithReportableDetails(map[string]interface{}{"brokers": cfg.Brokers}).
			Mark(ierr.ErrSystem)
	}

	if consumerGroup == "" {
		consumerGroup = cfg.ConsumerGroup
	}
	return &KafkaPubSub{
		cfg:           cfg,
		logger:        wmLogger,
		publisher:     publisher,
		consumerGroup: consumerGroup,
	}, nil
}

func partitionKey(_ string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(MetadataPartitionKey); key != "" {
		return key, nil
	}
	return msg.UUID, nil
}

func (p *KafkaPubSub) Publish(_ context.Context, topic string, msg *message.Message) error {
	return p.publisher.Publish(topic, msg)
}

func (p *KafkaPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.subscriber == nil {
		sub, err := wmkafka.NewSubscriber(wmkafka.SubscriberConfig{
			Brokers:               p.cfg.Brokers,
			Unmarshaler:           wmkafka.DefaultMarshaler{},
			OverwriteSaramaConfig: kafka.GetSaramaConfig(p.cfg),
			ConsumerGroup:         p.consumerGroup,
		}, p.logger)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to create kafka subscriber").
				Mark(ierr.ErrSystem)
		}
		p.subscriber = sub
	}
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *KafkaPubSub) Close() error {
	var err error
	if p.subscriber != nil {
		err = p.subscriber.Close()
	}
	if pErr := p.publisher.Close(); pErr != nil {
		err = pErr
	}
	return err
}

// New picks the transport configured under event_publisher.pubsub
func New(cfg *config.Configuration, log *logger.Logger) (PubSub, error) {
	if cfg.EventPublisher.PubSub == "kafka" {
		return NewKafkaPubSub(cfg.Kafka, log, cfg.Kafka.ConsumerGroup)
	}
	return NewMemoryPubSub(log), nil
}
