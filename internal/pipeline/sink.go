package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/transitlens/transitlens/internal/message"
)

// PredictionSink receives finished predictions. Delivery is fire-and-forget
// from the engine's point of view: a sink failure is reported but never
// blocks or rolls back cache updates.
type PredictionSink interface {
	Publish(ctx context.Context, pred message.Prediction) error
	Close() error
}

// LogSink writes predictions to the structured log. It is the default sink
// when no predictions topic is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, pred message.Prediction) error {
	s.logger.Info("Prediction",
		zap.String("vehicle_id", pred.VehicleID),
		zap.String("trip_id", pred.TripID),
		zap.Int("segment_index", pred.SegmentIndex),
		zap.Int64("eta_ms", pred.EtaMillis),
		zap.String("travel_tier", pred.TravelTier),
		zap.String("dwell_tier", pred.DwellTier),
		zap.Bool("low_confidence", pred.LowConfidence),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

// KafkaSink publishes predictions as JSON to a Kafka topic, keyed by vehicle
// so downstream consumers see one vehicle's predictions in order.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Logger:   kafkaZapLogger{logger.Named("kafka-writer").WithOptions(zap.AddCallerSkip(1))},
	}
	logger.Info("Kafka prediction sink created",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &KafkaSink{writer: w, logger: logger}
}

func (s *KafkaSink) Publish(ctx context.Context, pred message.Prediction) error {
	value, err := json.Marshal(pred)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKafkaWriteFailed, err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(pred.VehicleID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKafkaWriteFailed, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
