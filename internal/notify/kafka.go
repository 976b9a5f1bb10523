package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/xtxerr/vigil/config"
	"github.com/xtxerr/vigil/internal/errors"
	"github.com/xtxerr/vigil/internal/logging"
	"github.com/xtxerr/vigil/internal/storage/types"
)

var log = logging.Component("notify")

// KafkaOptions configures the Kafka publisher.
type KafkaOptions struct {
	Brokers      []string
	Topic        string
	FlushTimeout time.Duration
}

// Kafka publishes invalidation events to a Kafka topic and waits for each
// delivery report.
type Kafka struct {
	producer *kafka.Producer
	topic    string
	flush    time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewKafka creates a producer for opts.Topic. Brokers are contacted
// lazily, so construction succeeds while the cluster is unreachable.
func NewKafka(opts KafkaOptions) (*Kafka, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.NewMissingField("notify.kafka.brokers")
	}
	if opts.Topic == "" {
		opts.Topic = config.DefaultKafkaTopic
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = config.DefaultKafkaFlushTimeout
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(opts.Brokers, ","),
		"acks":              "all",
		"retries":           3,
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	k := &Kafka{
		producer: producer,
		topic:    opts.Topic,
		flush:    opts.FlushTimeout,
		done:     make(chan struct{}),
	}
	go k.logEvents()
	return k, nil
}

// logEvents drains producer-level events. Per-message delivery reports go
// to the channel passed to Produce and never arrive here.
func (k *Kafka) logEvents() {
	for {
		select {
		case <-k.done:
			return
		case ev, ok := <-k.producer.Events():
			if !ok {
				return
			}
			if e, isErr := ev.(kafka.Error); isErr {
				log.Warn("kafka producer error", "code", e.Code().String(), "error", e)
			}
		}
	}
}

// Notify publishes rec and waits for the broker acknowledgement or ctx.
func (k *Kafka) Notify(ctx context.Context, rec types.InvalidationRecord) error {
	key, value, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}

	// Buffered so a late delivery report never blocks librdkafka after
	// ctx is done.
	delivery := make(chan kafka.Event, 1)

	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   key,
		Value: value,
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", k.topic, err)
	}

	select {
	case e := <-delivery:
		if msg, ok := e.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
			return fmt.Errorf("deliver to %s: %w", k.topic, msg.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding messages and closes the producer.
func (k *Kafka) Close() error {
	k.closeOnce.Do(func() {
		if left := k.producer.Flush(int(k.flush / time.Millisecond)); left > 0 {
			log.Warn("kafka messages not flushed", "count", left)
		}
		close(k.done)
		k.producer.Close()
	})
	return nil
}
