// Package kafka publishes completed run records to a Kafka topic so
// downstream alerting can react to FAIL runs without polling the filesystem.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/forecast-mart-etl/internal/config"
	"github.com/couchcryptid/forecast-mart-etl/internal/domain"
)

// RunRecordWriter produces run records to the configured topic.
type RunRecordWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewRunRecordWriter creates a Kafka producer for the run-record topic.
func NewRunRecordWriter(cfg *config.Config, logger *slog.Logger) *RunRecordWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaRunTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &RunRecordWriter{writer: w, logger: logger}
}

// PublishRunRecord serializes and publishes one run record. The message key
// is the run date, so log-compacted topics retain the latest record per date.
func (w *RunRecordWriter) PublishRunRecord(ctx context.Context, rec domain.RunRecord) error {
	msg, err := serializeRunRecord(rec)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run record for %s: %w", rec.RunDate, err)
	}
	w.logger.Info("run record published", "run_date", rec.RunDate, "status", rec.Status)
	return nil
}

func (w *RunRecordWriter) Close() error {
	return w.writer.Close()
}

// serializeRunRecord marshals a RunRecord into a Kafka message.
func serializeRunRecord(rec domain.RunRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.RunDate),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(rec.Status)},
			{Key: "run_id", Value: []byte(rec.RunID)},
		},
	}, nil
}
