// Package mover hands transfer effects to whatever moves funds.
package mover

import (
	"context"
	"log/slog"

	"alpine/internal/transfer"
	"alpine/pkg/requestcontext"
)

// Mover executes the effects of one recorded donation. Implementations must
// not retry internally; a returned error fails the donation.
type Mover interface {
	Move(ctx context.Context, donationID uint64, effects []transfer.Effect) error
}

// LogMover writes effects to the log. It is the default when no broker is configured.
type LogMover struct {
	logger *slog.Logger
}

func NewLogMover(logger *slog.Logger) *LogMover {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMover{logger: logger}
}

func (m *LogMover) Move(ctx context.Context, donationID uint64, effects []transfer.Effect) error {
	for _, e := range effects {
		m.logger.InfoContext(ctx, "transfer effect",
			"donation_id", donationID,
			"kind", string(e.Kind),
			"to_address", e.ToAddress,
			"amount", e.Amount.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return nil
}
