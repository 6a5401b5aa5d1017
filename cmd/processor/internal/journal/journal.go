package journal

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/tracker"
)

// KafkaWriter abstracts the output stream
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ tracker.EventSink = (*Journal)(nil)

// Journal publishes delivery lifecycle events to Kafka for downstream
// auditing. Publishing is best-effort; a broker outage never blocks or
// fails the pipeline.
type Journal struct {
	writer KafkaWriter
	logger *zap.Logger
}

func NewJournal(writer KafkaWriter, logger *zap.Logger) *Journal {
	return &Journal{writer: writer, logger: logger}
}

func (j *Journal) Publish(ctx context.Context, ev tracker.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		j.logger.Error("JSON Marshal Error", zap.Error(err))
		return
	}

	err = j.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.CorrelationID), // Key ensures partition ordering per delivery
		Value: payload,
	})
	if err != nil {
		j.logger.Error("Kafka Write Error", zap.Error(err), zap.String("kind", ev.Kind))
	}
}

func (j *Journal) Close() error {
	return j.writer.Close()
}
