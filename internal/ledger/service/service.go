package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"alpine/internal/ledger/metrics"
	"alpine/internal/ledger/models"
	dErrors "alpine/pkg/domain-errors"
	"alpine/pkg/platform/sentinel"
	txcontext "alpine/pkg/platform/tx"
	"alpine/pkg/requestcontext"
)

// Store persists donations, the counter and the two address indexes.
// Insert must write the record and both index entries atomically.
type Store interface {
	IncrementCount(ctx context.Context) (uint64, error)
	Count(ctx context.Context) (uint64, error)
	Insert(ctx context.Context, donation *models.Donation) error
	FindByID(ctx context.Context, id uint64) (*models.Donation, error)
	ListBySender(ctx context.Context, addr string) ([]*models.Donation, error)
	ListByRecipient(ctx context.Context, addr string) ([]*models.Donation, error)
}

// Service is the append-only donation ledger.
type Service struct {
	store   Store
	tx      txcontext.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, tx: txcontext.NewMutexRunner()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextID advances the counter and returns the new id. Ids start at 1.
func (s *Service) NextID(ctx context.Context) (uint64, error) {
	id, err := s.store.IncrementCount(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "failed to advance donation counter")
	}
	return id, nil
}

// Append assigns the next id to donation and persists it with its index entries.
// The counter advance and the insert share one unit of work.
func (s *Service) Append(ctx context.Context, donation *models.Donation) (uint64, error) {
	if donation.Amount.IsEmpty() {
		return 0, models.ErrNoDonation()
	}

	var id uint64
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		next, err := s.NextID(ctx)
		if err != nil {
			return err
		}
		record := *donation
		record.ID = next
		if err := s.store.Insert(ctx, &record); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return models.ErrDuplicateDonationID(next)
			}
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to insert donation")
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	donation.ID = id
	if s.logger != nil {
		args := []any{
			"donation_id", id,
			"sender_address", donation.Sender.Address,
			"recipient_address", donation.Recipient.Address,
			"amount", donation.Amount.String(),
			"event", "donation_recorded",
			"log_type", "audit",
		}
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			args = append(args, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, "donation_recorded", args...)
	}
	if s.metrics != nil {
		s.metrics.RecordDonation(id, donation.Amount[0].Denom, donation.Amount[0].Amount)
	}
	return id, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Donation, error) {
	donation, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrDonationNotFound(id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load donation")
	}
	return donation, nil
}

// ListBySender returns the donations sent from addr, oldest first.
func (s *Service) ListBySender(ctx context.Context, addr string) ([]*models.Donation, error) {
	donations, err := s.store.ListBySender(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list sent donations")
	}
	return sortByTime(donations), nil
}

// ListByRecipient returns the donations received by addr, oldest first.
func (s *Service) ListByRecipient(ctx context.Context, addr string) ([]*models.Donation, error) {
	donations, err := s.store.ListByRecipient(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list received donations")
	}
	return sortByTime(donations), nil
}

func (s *Service) Count(ctx context.Context) (uint64, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load donation count")
	}
	return count, nil
}

// sortByTime orders by timestamp, keeping id order among equal timestamps.
func sortByTime(donations []*models.Donation) []*models.Donation {
	sort.SliceStable(donations, func(i, j int) bool {
		return donations[i].SortTime().Before(donations[j].SortTime())
	})
	return donations
}
