package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/psychro-chart-etl/internal/config"
	"github.com/couchcryptid/psychro-chart-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to Kafka. The topic is set per message so one
// producer serves both the job topic and the layered-chart topic.
// It implements pipeline.BatchLoader and pipeline.JobPublisher.
type Writer struct {
	writer       *kafkago.Writer
	jobTopic     string
	layeredTopic string
	logger       *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topics.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{
		writer:       w,
		jobTopic:     cfg.KafkaJobTopic,
		layeredTopic: cfg.KafkaLayeredTopic,
		logger:       logger,
	}
}

// LoadBatch publishes layered-chart events in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.LayeredChart) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeLayered(events[i])
		if err != nil {
			return err
		}
		msg.Topic = w.layeredTopic
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// PublishJobs sends chart jobs to the renderer's job topic.
func (w *Writer) PublishJobs(ctx context.Context, jobs []domain.ChartJob) error {
	if len(jobs) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(jobs))
	for i := range jobs {
		msg, err := serializeJob(jobs[i])
		if err != nil {
			return err
		}
		msg.Topic = w.jobTopic
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish jobs: %w", err)
	}
	w.logger.Info("published chart jobs", "topic", w.jobTopic, "count", len(jobs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeLayered marshals a LayeredChart into a Kafka message.
func serializeLayered(event domain.LayeredChart) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layered chart: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ChartID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "skipped", Value: []byte(fmt.Sprint(event.Skipped))},
			{Key: "layered_at", Value: []byte(event.LayeredAt.Format(time.RFC3339))},
		},
	}, nil
}

// serializeJob marshals a ChartJob into a Kafka message keyed by job ID.
func serializeJob(job domain.ChartJob) (kafkago.Message, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize chart job: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(job.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "label", Value: []byte(job.Label)},
			{Key: "output_name", Value: []byte(job.OutputName)},
			{Key: "created_at", Value: []byte(job.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
