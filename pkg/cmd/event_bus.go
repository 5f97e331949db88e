package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/evofitmeals/evoflow/pkg/channels/gochannel"
	"github.com/evofitmeals/evoflow/pkg/channels/kafka"
	"github.com/evofitmeals/evoflow/pkg/eventbus"
)

var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// Transport bundles the watermill publisher and subscriber behind the event
// bus. Action commands are published on the same publisher.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Bus        eventbus.EventBus
}

// NewTransport connects to the event bus named by provider: "gochannel" for
// an in-process bus or "kafka" for brokers read from KAFKA_BROKERS.
func NewTransport(provider string, logger *slog.Logger) (*Transport, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		channel := gochannel.CreateChannel(wmLogger)

		return &Transport{
			Publisher:  channel,
			Subscriber: channel,
			Bus:        eventbus.NewWatermillEventBus(channel, channel),
		}, nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(kafka.Config{
			Brokers:       kafka.BrokersFromEnv(),
			ConsumerGroup: "evoflow",
		}, wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return &Transport{
			Publisher:  pub,
			Subscriber: sub,
			Bus:        eventbus.NewWatermillEventBus(pub, sub),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, provider)
	}
}

func (t *Transport) Close() error {
	return t.Bus.Close()
}
