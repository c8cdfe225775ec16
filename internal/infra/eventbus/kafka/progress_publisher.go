// Package kafka publishes scan progress observations to Kafka so dashboards
// and other pipelines can follow a scan without polling the server.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/cxscan/internal/domain/scanning"
	"github.com/ahrav/cxscan/pkg/common/logger"
)

// EventTypeHeader carries the event type so consumers can route without
// decoding the payload.
const EventTypeHeader = "event_type"

var _ scanning.ProgressReporter = (*ProgressPublisher)(nil)

// ProgressEvent is the JSON payload of a published observation.
type ProgressEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	Kind          string    `json:"kind"`
	RunID         string    `json:"run_id"`
	ScanID        int64     `json:"scan_id,omitempty"`
	Status        string    `json:"status"`
	QueuePosition int64     `json:"queue_position,omitempty"`
	LOC           int64     `json:"loc,omitempty"`
	StagePercent  int       `json:"stage_percent,omitempty"`
	TotalPercent  int       `json:"total_percent,omitempty"`
	StageName     string    `json:"stage_name,omitempty"`
	StageMessage  string    `json:"stage_message,omitempty"`
	StepMessage   string    `json:"step_message,omitempty"`
	StepDetails   string    `json:"step_details,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
}

func newProgressEvent(p scanning.Progress) ProgressEvent {
	return ProgressEvent{
		EventID:       uuid.New(),
		Kind:          string(p.Kind),
		RunID:         p.RunID,
		ScanID:        p.ScanID,
		Status:        p.Status.String(),
		QueuePosition: p.QueuePosition,
		LOC:           p.LOC,
		StagePercent:  p.StagePercent,
		TotalPercent:  p.TotalPercent,
		StageName:     p.StageName,
		StageMessage:  p.StageMessage,
		StepMessage:   p.StepMessage,
		StepDetails:   p.StepDetails,
		ObservedAt:    p.ObservedAt,
	}
}

// ProgressPublisher sends one message per observation, keyed by run id.
type ProgressPublisher struct {
	producer sarama.SyncProducer
	topic    string

	logger *logger.Logger
	tracer trace.Tracer
}

// NewProgressPublisher creates a publisher writing to topic.
func NewProgressPublisher(producer sarama.SyncProducer, topic string, log *logger.Logger, tracer trace.Tracer) *ProgressPublisher {
	return &ProgressPublisher{
		producer: producer,
		topic:    topic,
		logger:   log.With("component", "progress_publisher", "topic", topic),
		tracer:   tracer,
	}
}

// ReportProgress publishes p.
func (pub *ProgressPublisher) ReportProgress(ctx context.Context, p scanning.Progress) error {
	ctx, span := startProducerSpan(ctx, pub.topic, pub.tracer)
	defer span.End()

	event := newProgressEvent(p)
	span.SetAttributes(
		attribute.String("event.key", event.RunID),
		attribute.String("event.kind", event.Kind),
	)

	payload, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize event")
		return fmt.Errorf("failed to serialize progress event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: pub.topic,
		Key:   sarama.StringEncoder(event.RunID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(EventTypeHeader), Value: []byte("scan.progress." + event.Kind)},
		},
	}
	injectTraceContext(ctx, msg)

	partition, offset, err := pub.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		return fmt.Errorf("failed to send message to kafka topic %s: %w", pub.topic, err)
	}

	pub.logger.Debug(ctx, "Published progress event",
		"partition", partition,
		"offset", offset,
		"kind", event.Kind,
		"run_id", event.RunID,
	)
	span.SetStatus(codes.Ok, "event published")
	return nil
}

// Close releases the underlying producer.
func (pub *ProgressPublisher) Close() error {
	if err := pub.producer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	return nil
}
