package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// RedisSink publishes on the channel the websocket gateway subscribes to.
type RedisSink struct {
	client  redisPublisher
	channel string
}

func NewRedisSink(client redisPublisher, channel string) (*RedisSink, error) {
	if client == nil {
		return nil, errors.New("redis publisher required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("redis channel required")
	}
	return &RedisSink{client: client, channel: channel}, nil
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, _ Event, payload []byte) error {
	_, err := s.client.Publish(ctx, s.channel, payload)
	return err
}

type topicPublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// PubSubSink publishes to a Pub/Sub topic with the event type as an attribute.
type PubSubSink struct {
	client topicPublisher
}

func NewPubSubSink(client topicPublisher) (*PubSubSink, error) {
	if client == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubSink{client: client}, nil
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Send(ctx context.Context, event Event, payload []byte) error {
	_, err := s.client.Publish(ctx, payload, map[string]string{
		"event_id":   event.ID,
		"event_type": string(event.Type),
		"order_id":   event.OrderID.String(),
	})
	return err
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events keyed by order id so one order's events stay ordered
// within a partition.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink builds a synchronous writer so publish errors reach the caller.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka topic required")
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}}, nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, event Event, payload []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
