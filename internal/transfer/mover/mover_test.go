package mover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	ledger "alpine/internal/ledger/models"
	"alpine/internal/transfer"
	"alpine/pkg/requestcontext"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func effects() []transfer.Effect {
	return []transfer.Effect{
		{Kind: transfer.EffectPayout, ToAddress: "alp1recipient", Amount: ledger.Funds{{Denom: "ujuno", Amount: 970}}},
		{Kind: transfer.EffectCommission, ToAddress: "alp1platform", Amount: ledger.Funds{{Denom: "ujuno", Amount: 30}}},
	}
}

func TestKafkaMoverPublishesOneEventPerDonation(t *testing.T) {
	now := time.Date(2024, 4, 4, 4, 4, 4, 0, time.UTC)
	ctx := requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), now), "req-1")
	producer := &fakeProducer{}
	m := NewKafkaMover(producer, "transfers")
	m.newID = func() string { return "evt-1" }

	require.NoError(t, m.Move(ctx, 12, effects()))
	require.Len(t, producer.records, 1)

	record := producer.records[0]
	assert.Equal(t, "transfers", record.Topic)
	assert.Equal(t, "12", string(record.Key))
	assert.Contains(t, record.Headers, kgo.RecordHeader{Key: "event_id", Value: []byte("evt-1")})

	var event TransferEvent
	require.NoError(t, json.Unmarshal(record.Value, &event))
	assert.Equal(t, TransferEvent{
		EventID:    "evt-1",
		DonationID: 12,
		RequestID:  "req-1",
		Effects:    effects(),
		CreatedAt:  now,
	}, event)
}

func TestKafkaMoverSkipsEmptyEffects(t *testing.T) {
	producer := &fakeProducer{}
	require.NoError(t, NewKafkaMover(producer, "transfers").Move(context.Background(), 1, nil))
	assert.Empty(t, producer.records)
}

func TestKafkaMoverReportsProduceFailure(t *testing.T) {
	boom := errors.New("broker down")
	err := NewKafkaMover(&fakeProducer{err: boom}, "transfers").Move(context.Background(), 1, effects())
	require.ErrorIs(t, err, boom)
}

func TestLogMoverLogsEachEffect(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMover(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, m.Move(context.Background(), 3, effects()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "payout", first["kind"])
	assert.Equal(t, "970ujuno", first["amount"])
	assert.EqualValues(t, 3, first["donation_id"])
}
