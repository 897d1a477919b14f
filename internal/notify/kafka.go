package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaNotifier publishes notifications to a Kafka-compatible broker.
// Produce is asynchronous: Send returns once the record is buffered and the
// delivery result is only logged.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

type KafkaOption func(*KafkaNotifier)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(n *KafkaNotifier) {
		n.logger = logger
	}
}

// NewKafkaNotifier connects to brokers and makes sure topic exists.
func NewKafkaNotifier(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("tutorly"),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := EnsureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	n := &KafkaNotifier{client: client, topic: topic, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// EnsureTopic creates topic with one partition unless it already exists.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resps {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (n *KafkaNotifier) Send(ctx context.Context, kind Kind, recipient string, data map[string]string) error {
	payload, err := Message{Kind: kind, Recipient: recipient, Data: data, SentAt: n.now()}.Encode()
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{Topic: n.topic, Key: []byte(recipient), Value: payload}
	// The request context may end before delivery; the record outlives it.
	n.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			n.logger.Warn("notification delivery failed",
				"kind", kind,
				"topic", r.Topic,
				"error", err.Error(),
			)
		}
	})
	return nil
}

// Close flushes buffered records and closes the client.
func (n *KafkaNotifier) Close(ctx context.Context) error {
	err := n.client.Flush(ctx)
	n.client.Close()
	return err
}

// Consumer reads notifications back off the topic, for delivery workers.
type Consumer struct {
	client *kgo.Client
}

func NewConsumer(brokers []string, topic, group string) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client}, nil
}

// Run polls until ctx ends, passing each decoded message to handle. Records
// that fail to decode are skipped.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, Message) error) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return fmt.Errorf("poll notifications: %w", errs[0].Err)
		}
		var handleErr error
		fetches.EachRecord(func(r *kgo.Record) {
			if handleErr != nil {
				return
			}
			msg, err := Decode(r.Value)
			if err != nil {
				return
			}
			handleErr = handle(ctx, msg)
		})
		if handleErr != nil {
			return handleErr
		}
	}
}
