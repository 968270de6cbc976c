// Package kafka provides the Kafka-backed notification channel for
// deployments that fan notifications out to separate delivery workers.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// CreatePublisher creates a Kafka publisher from the KAFKA_BROKERS
// environment variable (comma-separated broker list). The webhook server
// only publishes; it never joins a consumer group.
func CreatePublisher(logger watermill.LoggerAdapter) (*kafka.Publisher, error) {
	brokers, err := brokerList()
	if err != nil {
		return nil, err
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true

	return kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
}

// CreateSubscriber creates a Kafka subscriber in the consumer group
// "cg-<serviceName>", used by the notification delivery worker.
func CreateSubscriber(logger watermill.LoggerAdapter, serviceName string) (*kafka.Subscriber, error) {
	brokers, err := brokerList()
	if err != nil {
		return nil, err
	}

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	return kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
}

func brokerList() ([]string, error) {
	brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("KAFKA_BROKERS environment variable is not set or empty")
	}

	return brokers, nil
}
