//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) []string {
	t.Helper()

	ctx := context.Background()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("evoflow-test"),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func createTopic(t *testing.T, brokers []string, topic string) {
	t.Helper()

	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0

	admin, err := sarama.NewClusterAdmin(brokers, config)
	require.NoError(t, err)

	defer admin.Close()

	err = admin.CreateTopic(topic, &sarama.TopicDetail{NumPartitions: 1, ReplicationFactor: 1}, false)
	require.NoError(t, err)
}

func TestCreateChannel_RoundTrip(t *testing.T) {
	brokers := setupKafka(t)
	topic := "evoflow.actions.email"
	createTopic(t, brokers, topic)

	publisher, subscriber, err := CreateChannel(Config{Brokers: brokers, ConsumerGroup: "evoflow-test"}, watermill.NopLogger{})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = publisher.Close()
		_ = subscriber.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	messages, err := subscriber.Subscribe(ctx, topic)
	require.NoError(t, err)

	sent := message.NewMessage(watermill.NewULID(), []byte(`{"to":"ana@example.com"}`))
	require.NoError(t, publisher.Publish(topic, sent))

	select {
	case received := <-messages:
		assert.Equal(t, sent.UUID, received.UUID)
		assert.JSONEq(t, `{"to":"ana@example.com"}`, string(received.Payload))
		received.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for the kafka message")
	}
}
