// Package kafka publishes the merged schema to a Kafka sink topic, one
// message per date, for downstream consumers that want the feed without
// polling the published endpoint.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/datespot/aggregator/internal/domain"
)

// Writer produces schema day messages to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the sink topic.
func NewWriter(brokers []string, topic string, clock clockwork.Clock, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, clock: clock, logger: logger}
}

// schemaDay is the per-date sink payload.
type schemaDay struct {
	Date          string                `json:"date"`
	WeatherReport *domain.WeatherReport `json:"weather_report"`
	Events        []domain.Event        `json:"events"`
}

// Publish serializes the schema into one message per date, keyed by the
// date string, and writes them in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, schema *domain.Schema) error {
	if len(schema.ResultsByDate) == 0 {
		return nil
	}

	publishedAt := w.clock.Now().UTC().Format(time.RFC3339)
	msgs := make([]kafkago.Message, 0, len(schema.ResultsByDate))
	for date, events := range schema.ResultsByDate {
		msg, err := serializeToMessage(schemaDay{
			Date:          date,
			WeatherReport: schema.WeatherReportByDate[date],
			Events:        events,
		}, publishedAt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write schema messages: %w", err)
	}
	w.logger.Info("published schema to kafka", "dates", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one schema day into a Kafka message.
func serializeToMessage(day schemaDay, publishedAt string) (kafkago.Message, error) {
	data, err := json.Marshal(day)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize schema day: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(day.Date),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_count", Value: []byte(strconv.Itoa(len(day.Events)))},
			{Key: "published_at", Value: []byte(publishedAt)},
		},
	}, nil
}
