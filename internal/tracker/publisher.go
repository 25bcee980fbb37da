package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/traderadar/backend/internal/analytics"
	"github.com/traderadar/backend/internal/config"
)

type Publisher interface {
	Publish(ctx context.Context, alerts []analytics.Alert) error
	Close() error
}

// KafkaPublisher writes each alert as one JSON message keyed by symbol, so
// alerts for the same pair land on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, alerts []analytics.Alert) error {
	messages, err := alertMessages(alerts, time.Now())
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	return p.writer.WriteMessages(ctx, messages...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type alertEvent struct {
	analytics.Alert
	Severity analytics.Severity `json:"severity"`
}

func alertMessages(alerts []analytics.Alert, now time.Time) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(alerts))
	for _, alert := range alerts {
		value, err := json.Marshal(alertEvent{Alert: alert, Severity: analytics.SeverityOf(alert)})
		if err != nil {
			return nil, fmt.Errorf("encode alert %s: %w", alert.ID, err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(alert.Symbol),
			Value: value,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "alert-type", Value: []byte(alert.Type)},
			},
		})
	}
	return messages, nil
}

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, alerts []analytics.Alert) error {
	for _, alert := range alerts {
		p.logger.Info("alert",
			"id", alert.ID,
			"type", alert.Type,
			"severity", analytics.SeverityOf(alert),
			"symbol", alert.Symbol,
			"pool", alert.PoolAddress,
			"message", alert.Message,
			"value", alert.Value,
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
