// Package events publishes domain events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// PRAchieved is emitted once per newly set personal record.
type PRAchieved struct {
	EventID        string    `json:"event_id"`
	UserID         int64     `json:"user_id"`
	SessionID      int64     `json:"session_id"`
	ExerciseKey    string    `json:"exercise_key"`
	RecordType     string    `json:"record_type"`
	Value          float64   `json:"value"`
	Reps           int       `json:"reps"`
	Weight         float64   `json:"weight"`
	PreviousValue  *float64  `json:"previous_value,omitempty"`
	ImprovementPct *float64  `json:"improvement_pct,omitempty"`
	AchievedAt     time.Time `json:"achieved_at"`
}

// Publisher delivers domain events.
type Publisher interface {
	PublishPRAchieved(ctx context.Context, evs ...PRAchieved) error
	Close() error
}

// NopPublisher drops every event. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishPRAchieved(context.Context, ...PRAchieved) error { return nil }
func (NopPublisher) Close() error                                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by user id, so every
// event of one user lands on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}}
}

// PublishPRAchieved writes evs in a single batch. Missing event ids are
// filled in.
func (p *KafkaPublisher) PublishPRAchieved(ctx context.Context, evs ...PRAchieved) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		if ev.EventID == "" {
			ev.EventID = uuid.NewString()
		}
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("events: encode pr achieved: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(ev.UserID, 10)),
			Value: body,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte("pr.achieved")},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("events: write %d message(s): %w", len(msgs), err)
	}
	return nil
}

// Close flushes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
