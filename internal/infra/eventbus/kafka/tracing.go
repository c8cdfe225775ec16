package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// messageCarrier implements propagation.TextMapCarrier for Kafka headers.
type messageCarrier struct {
	headers []sarama.RecordHeader
}

func (mc *messageCarrier) Get(key string) string {
	for _, h := range mc.headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (mc *messageCarrier) Set(key, value string) {
	mc.headers = append(mc.headers, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (mc *messageCarrier) Keys() []string {
	out := make([]string, len(mc.headers))
	for i, h := range mc.headers {
		out[i] = string(h.Key)
	}
	return out
}

// injectTraceContext adds the current trace context to the message headers.
func injectTraceContext(ctx context.Context, msg *sarama.ProducerMessage) {
	carrier := &messageCarrier{headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.headers
}

// startProducerSpan creates a new span for producing messages.
func startProducerSpan(ctx context.Context, topic string, tracer trace.Tracer) (context.Context, trace.Span) {
	return tracer.Start(ctx, "kafka.produce",
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingOperationPublish,
		),
	)
}
