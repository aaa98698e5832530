package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tutorbase/internal/platform/kafka/producer"
)

// Sink receives serialized audit events. Kafka in production, slog or a
// buffer in tests.
type Sink interface {
	Write(ctx context.Context, key []byte, value []byte) error
}

// Publisher serializes events and hands them to a sink, optionally through an
// async buffer so domain flows never block on the broker.
type Publisher struct {
	sink   Sink
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and delivered in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for async error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher constructs a Publisher over the given sink.
func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

// Emit records an audit event. Delivery failures are logged, never surfaced;
// audit is best-effort by contract.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.async {
		select {
		case p.events <- event:
		default:
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
		return nil
	}

	return p.deliver(ctx, event)
}

// Close drains the async buffer and waits for in-flight deliveries.
func (p *Publisher) Close() {
	if p.async {
		close(p.events)
		p.wg.Wait()
	}
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.deliver(context.Background(), event); err != nil {
			p.logger.Error("failed to deliver audit event",
				"error", err,
				"action", event.Action,
				"user_id", event.UserID.String(),
			)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	var key []byte
	if !event.UserID.IsZero() {
		key = []byte(event.UserID.String())
	}
	return p.sink.Write(ctx, key, value)
}

// KafkaSink delivers audit events to a Kafka topic.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaSink constructs a sink over the shared producer.
func NewKafkaSink(p *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Write(ctx context.Context, key []byte, value []byte) error {
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   key,
		Value: value,
	})
}

// LogSink writes audit events to the structured log. Used when Kafka is not
// configured so the trail is never silently lost.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a sink over the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(ctx context.Context, key []byte, value []byte) error {
	s.logger.InfoContext(ctx, "audit event", "key", string(key), "event", string(value))
	return nil
}
