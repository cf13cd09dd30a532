package mover

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"alpine/internal/transfer"
	"alpine/pkg/requestcontext"
)

// Producer is the part of *kgo.Client the mover needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// TransferEvent is the message published for one donation.
type TransferEvent struct {
	EventID    string            `json:"event_id"`
	DonationID uint64            `json:"donation_id"`
	RequestID  string            `json:"request_id,omitempty"`
	Effects    []transfer.Effect `json:"effects"`
	CreatedAt  time.Time         `json:"created_at"`
}

// KafkaMover publishes one TransferEvent per donation, keyed by donation id so
// all effects of a donation land on one partition in order.
type KafkaMover struct {
	producer Producer
	topic    string
	newID    func() string
}

// NewKafkaMover publishes to topic; an empty topic uses the client's default.
func NewKafkaMover(producer Producer, topic string) *KafkaMover {
	return &KafkaMover{producer: producer, topic: topic, newID: func() string { return uuid.NewString() }}
}

func (m *KafkaMover) Move(ctx context.Context, donationID uint64, effects []transfer.Effect) error {
	if len(effects) == 0 {
		return nil
	}
	event := TransferEvent{
		EventID:    m.newID(),
		DonationID: donationID,
		RequestID:  requestcontext.RequestID(ctx),
		Effects:    effects,
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}
	record := &kgo.Record{
		Topic: m.topic,
		Key:   []byte(strconv.FormatUint(donationID, 10)),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "event_type", Value: []byte("donation.transfer")},
		},
	}
	if err := m.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish transfer event: %w", err)
	}
	return nil
}
