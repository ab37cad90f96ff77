// Package kafka publishes completed analysis results to a Kafka topic for
// downstream consumers (alerting, archival). Publishing is optional and
// feature-flagged in config.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/floodwatch/imagery-pipeline/internal/config"
	"github.com/floodwatch/imagery-pipeline/internal/domain"
)

// Publisher produces analysis results to the configured result topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishResult serializes and writes one analysis result. The result ID is
// the message key so re-analyses of the same scene land on one partition.
func (p *Publisher) PublishResult(ctx context.Context, result domain.AnalysisResult) error {
	msg, err := serializeResult(result)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeResult(result domain.AnalysisResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize analysis result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(result.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "provenance", Value: []byte(result.Provenance.Source)},
			{Key: "processed_at", Value: []byte(result.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
