// Package events carries domain events from writes to the notification fan-out.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	DietPlanAssigned     Type = "diet_plan.assigned"
	ExerciseAssigned     Type = "exercise.assigned"
	LabReportUploaded    Type = "lab_report.uploaded"
	HealthStatusRecorded Type = "health_status.recorded"
	DietQuestionDue      Type = "diet_question.due"
	DietPlanReminder     Type = "diet_plan.reminder"
)

// Event is addressed to one recipient.
type Event struct {
	Type       Type      `json:"type"`
	UserID     uint      `json:"user_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is what domain services depend on. Publish failures are the
// caller's to log; they never fail the write that produced the event.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Handler consumes events, e.g. the notification service.
type Handler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// Emit publishes and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, evt Event) {
	if p == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	if err := p.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Str("type", string(evt.Type)).Uint("user_id", evt.UserID).Msg("event publish failed")
	}
}

// DirectPublisher hands events to the handler in-process.
type DirectPublisher struct {
	Handler Handler
}

func (d *DirectPublisher) Publish(ctx context.Context, evt Event) error {
	if d.Handler == nil {
		return errors.New("no event handler registered")
	}
	return d.Handler.HandleEvent(ctx, evt)
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	Writer MessageWriter
}

func (k *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return k.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(evt.UserID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	})
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consume feeds every message to h until ctx is cancelled. Bad payloads and
// handler errors are logged and skipped.
func Consume(ctx context.Context, r MessageReader, h Handler) error {
	defer r.Close()
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		var evt Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("dropping malformed event")
			continue
		}
		if err := h.HandleEvent(ctx, evt); err != nil {
			log.Error().Err(err).Str("type", string(evt.Type)).Msg("event handler failed")
		}
	}
}
