package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worksphere/billing/internal/config"
)

func TestGetSaramaConfig_Plain(t *testing.T) {
	sc := GetSaramaConfig(config.KafkaConfig{ClientID: "billing-test"})

	assert.Equal(t, "billing-test", sc.ClientID)
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.False(t, sc.Net.SASL.Enable)
	assert.False(t, sc.Net.TLS.Enable)
	assert.NoError(t, sc.Validate())
}

func TestGetSaramaConfig_SCRAM(t *testing.T) {
	sc := GetSaramaConfig(config.KafkaConfig{
		ClientID:      "billing-test",
		UseSASL:       true,
		SASLMechanism: sarama.SASLTypeSCRAMSHA512,
		SASLUser:      "user",
		SASLPassword:  "secret",
	})

	assert.True(t, sc.Net.SASL.Enable)
	assert.True(t, sc.Net.TLS.Enable)
	require.NotNil(t, sc.Net.SASL.SCRAMClientGeneratorFunc)

	client := sc.Net.SASL.SCRAMClientGeneratorFunc()
	require.NoError(t, client.Begin("user", "secret", ""))
	assert.False(t, client.Done())
}
