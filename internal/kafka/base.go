package kafka

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"hash"
	"time"

	"github.com/Shopify/sarama"
	"github.com/worksphere/billing/internal/config"
	"github.com/xdg-go/scram"
)

// GetSaramaConfig builds the client config shared by the event publisher and
// any consumer of billing events.
func GetSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.ClientID = cfg.ClientID

	// billing events must not be lost: wait for all in-sync replicas
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 5
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = 5 * time.Second
	sc.Consumer.Offsets.Retry.Max = 3

	if cfg.TLS {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if !cfg.UseSASL {
		return sc
	}

	sc.Net.SASL.Enable = true
	sc.Net.TLS.Enable = true
	if sc.Net.TLS.Config == nil {
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	sc.Net.SASL.Mechanism = cfg.SASLMechanism
	sc.Net.SASL.User = cfg.SASLUser
	sc.Net.SASL.Password = cfg.SASLPassword

	switch cfg.SASLMechanism {
	case sarama.SASLTypeSCRAMSHA256, sarama.SASLTypeSCRAMSHA512:
		hashFn := scramHash(cfg.SASLMechanism)
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &scramClient{HashGeneratorFcn: hashFn}
		}
	}

	return sc
}

// scramClient adapts xdg-go/scram to sarama.SCRAMClient
type scramClient struct {
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.ClientConversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}

func scramHash(mechanism sarama.SASLMechanism) scram.HashGeneratorFcn {
	if mechanism == sarama.SASLTypeSCRAMSHA256 {
		return func() hash.Hash { return sha256.New() }
	}
	return func() hash.Hash { return sha512.New() }
}
