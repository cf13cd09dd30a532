package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"alpine/internal/registry/metrics"
	"alpine/internal/registry/models"
	dErrors "alpine/pkg/domain-errors"
	"alpine/pkg/platform/sentinel"
	txcontext "alpine/pkg/platform/tx"
	"alpine/pkg/requestcontext"
)

// Store persists identities under both their username and their address.
type Store interface {
	FindByUsernameFold(ctx context.Context, username string) (*models.Identity, error)
	FindByAddress(ctx context.Context, addr string) (*models.Identity, error)
	Save(ctx context.Context, identity *models.Identity) error
	ListByUsername(ctx context.Context) ([]*models.Identity, error)
}

// Service owns username uniqueness and identity lookup.
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

// WithTx sets the runner that makes registration atomic. Share it with the
// ledger so a whole request runs in one unit of work.
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

// ResolveByUsername finds the identity registered under username, ignoring case.
func (s *Service) ResolveByUsername(ctx context.Context, username string) (*models.Identity, error) {
	start := time.Now()
	defer s.observeResolve("username", start)

	identity, err := s.store.FindByUsernameFold(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrUserNotFound(username)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve username")
	}
	return identity, nil
}

// UsernameIsTaken reports whether username is registered in any casing.
// The error is non-nil only when storage fails.
func (s *Service) UsernameIsTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.store.FindByUsernameFold(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, dErrors.Wrap(err, dErrors.CodeStorage, "failed to check username")
	}
}

func (s *Service) ResolveByAddress(ctx context.Context, addr string) (*models.Identity, error) {
	start := time.Now()
	defer s.observeResolve("address", start)

	identity, err := s.store.FindByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, models.ErrUserNotFound(addr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve address")
	}
	return identity, nil
}

// Register claims desired for identity. The username is stored with the casing
// given here; uniqueness is checked case-insensitively.
func (s *Service) Register(ctx context.Context, identity *models.Identity, desired string) (*models.Identity, error) {
	username, err := models.ValidateUsername(desired)
	if err != nil {
		s.incrementRejected(err)
		return nil, err
	}
	if !identity.IsAnonymous() {
		err := models.ErrUserAlreadyExists()
		s.incrementRejected(err)
		return nil, err
	}

	registered := &models.Identity{Address: identity.Address, Username: username}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.FindByAddress(ctx, identity.Address); err == nil {
			return models.ErrAddressAlreadyRegistered(identity.Address)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to load address")
		}

		taken, err := s.UsernameIsTaken(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrUsernameNotAvailable(username)
		}

		if err := s.store.Save(ctx, registered); err != nil {
			if errors.Is(err, models.ErrAddressInUse) {
				return models.ErrAddressAlreadyRegistered(identity.Address)
			}
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return models.ErrUsernameNotAvailable(username)
			}
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to save identity")
		}
		return nil
	})
	if err != nil {
		s.incrementRejected(err)
		return nil, err
	}

	s.logAudit(ctx, "user_registered",
		"address", registered.Address,
		"username", registered.Username)
	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	return registered, nil
}

// List returns every registered identity ordered by username ascending.
func (s *Service) List(ctx context.Context) ([]*models.Identity, error) {
	identities, err := s.store.ListByUsername(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list users")
	}
	return identities, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) incrementRejected(err error) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
	}
}

func (s *Service) observeResolve(by string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveResolve(by, start)
	}
}
