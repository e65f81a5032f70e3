// Package kafka publishes covariate results to a sink topic for downstream
// consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
)

// Writer produces covariate result messages to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the given brokers and topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishResults serializes and publishes one message per covariate result
// in a single WriteMessages call.
func (w *Writer) PublishResults(ctx context.Context, runID string, results []domain.CovariateResult) error {
	if len(results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(results))
	for i := range results {
		msg, err := serializeResult(runID, results[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	w.logger.Info("publishing covariate results", "run_id", runID, "count", len(msgs))
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeResult marshals a CovariateResult into a Kafka message keyed by
// record id so per-record ordering is preserved across runs.
func serializeResult(runID string, result domain.CovariateResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize covariate result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.Record.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "status", Value: []byte(result.Status)},
			{Key: "computed_at", Value: []byte(result.ComputedAt.Format(time.RFC3339))},
		},
	}, nil
}
