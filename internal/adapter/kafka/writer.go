package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-energy/internal/config"
	"github.com/couchcryptid/quake-energy/internal/domain"
)

// Writer produces enriched events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    500,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes events to the sink topic in a single
// WriteMessages call. Keys are event IDs so replays land on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, quakes []domain.Quake) error {
	if len(quakes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(quakes))
	for i := range quakes {
		msg, err := serializeToMessage(quakes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d events: %w", len(msgs), err)
	}
	w.logger.Debug("events published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a Quake into a Kafka message.
func serializeToMessage(q domain.Quake) (kafkago.Message, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize quake event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(q.ID),
		Value: data,
		Time:  q.Time,
		Headers: []kafkago.Header{
			{Key: "mag_type", Value: []byte(q.MagType)},
			{Key: "processed_at", Value: []byte(q.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
