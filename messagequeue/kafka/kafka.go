// Package kafka 基于 segmentio/kafka-go 实现 messagequeue.EventPublisher。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/demaxmin/breaker"
	"github.com/wyfcoding/demaxmin/config"
	"github.com/wyfcoding/demaxmin/logging"
	"github.com/wyfcoding/demaxmin/messagequeue"
	"github.com/wyfcoding/demaxmin/metrics"
)

// Writer 是 kafka-go Writer 的最小接口。
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type producerMetrics struct {
	produced *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Producer 发布 JSON 编码的事件，失败时转投死信主题。
type Producer struct {
	topic     string
	writer    Writer
	dlqWriter Writer
	cb        *breaker.Breaker
	logger    *logging.Logger
	metrics   *producerMetrics
	tracer    trace.Tracer
}

// NewProducer 根据配置创建写入 cfg.Topic 的生产者，死信主题为 cfg.Topic + ".dlq"。
func NewProducer(cfg config.KafkaConfig, cb *breaker.Breaker, logger *logging.Logger, m *metrics.Metrics) *Producer {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  attempts,
		RequiredAcks: kafkago.RequireAll,
		Async:        cfg.Async,
	}

	dlq := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic + ".dlq",
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}

	return NewProducerWithWriters(cfg.Topic, w, dlq, cb, logger, m)
}

// NewProducerWithWriters 使用给定的 Writer 创建生产者，m 可为 nil。
func NewProducerWithWriters(topic string, w, dlq Writer, cb *breaker.Breaker, logger *logging.Logger, m *metrics.Metrics) *Producer {
	p := &Producer{
		topic:     topic,
		writer:    w,
		dlqWriter: dlq,
		cb:        cb,
		logger:    logger,
		tracer:    otel.Tracer("github.com/wyfcoding/demaxmin/messagequeue/kafka"),
	}
	if m != nil {
		p.metrics = &producerMetrics{
			produced: m.NewCounterVec(prometheus.CounterOpts{
				Name: "mq_produced_total",
				Help: "Total number of produced messages",
			}, []string{"topic", "status"}),
			duration: m.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "mq_operation_duration_seconds",
				Help:    "Message queue operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic", "operation"}),
		}
	}
	return p
}

func (p *Producer) observe(status string, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.produced.WithLabelValues(p.topic, status).Inc()
	p.metrics.duration.WithLabelValues(p.topic, "publish").Observe(time.Since(start).Seconds())
}

// Publish 实现 messagequeue.EventPublisher，追踪上下文随消息头传递。
func (p *Producer) Publish(ctx context.Context, key string, event messagequeue.Event) error {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "Kafka.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination", p.topic),
			attribute.String("messaging.event_type", event.Type),
		),
	)
	defer span.End()

	value, err := json.Marshal(event)
	if err != nil {
		span.SetStatus(codes.Error, "marshal failed")
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafkago.Header, 0, len(carrier)+1)
	headers = append(headers, kafkago.Header{Key: "event_type", Value: []byte(event.Type)})
	for k, v := range carrier {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	msg := kafkago.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}

	err = p.cb.Execute(func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.observe("failed", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		p.logger.ErrorContext(ctx, "failed to publish message", "topic", p.topic, "key", key, "error", err)

		if !errors.Is(err, breaker.ErrServiceUnavailable) {
			if dlqErr := p.dlqWriter.WriteMessages(ctx, msg); dlqErr != nil {
				p.logger.ErrorContext(ctx, "failed to write to DLQ", "topic", p.topic, "error", dlqErr)
			}
		}
		return err
	}

	p.observe("success", start)
	return nil
}

// Close 关闭主写入器与死信写入器。
func (p *Producer) Close() error {
	return errors.Join(p.dlqWriter.Close(), p.writer.Close())
}
