package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/pkg/log"
)

// Producer streams accepted messages to a Kafka topic for downstream
// history and indexing consumers. Production is fire-and-forget from
// the send path: archive trouble never fails a send.
type Producer interface {
	Produce(ctx context.Context, msg *domain.Message) error
	Close() error
}

// NopProducer discards messages. Used when the archive stream is
// disabled.
type NopProducer struct{}

func (NopProducer) Produce(ctx context.Context, msg *domain.Message) error { return nil }
func (NopProducer) Close() error                                           { return nil }

// ConfluentProducer implements Producer on Kafka. Messages are keyed by
// conversation id so one conversation stays on one partition, keeping
// its archive in send order.
type ConfluentProducer struct {
	producer *kafka.Producer
	topic    string
	doneCh   chan struct{}
}

func NewConfluentProducer(brokers, topic string, partitions int) (*ConfluentProducer, error) {
	if err := ensureTopic(brokers, topic, partitions); err != nil {
		log.L().Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic (may already exist)")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	cp := &ConfluentProducer{
		producer: p,
		topic:    topic,
		doneCh:   make(chan struct{}),
	}

	go cp.deliveryReportHandler()

	return cp, nil
}

func (cp *ConfluentProducer) Produce(ctx context.Context, msg *domain.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = cp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &cp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(msg.ConversationID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	return nil
}

func (cp *ConfluentProducer) Close() error {
	cp.producer.Flush(5000)
	cp.producer.Close()
	<-cp.doneCh
	return nil
}

func (cp *ConfluentProducer) deliveryReportHandler() {
	for e := range cp.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			log.L().Warn().Err(ev.TopicPartition.Error).Msg("kafka delivery failed")
		}
	}
	close(cp.doneCh)
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}
