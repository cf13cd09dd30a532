// Package transfer turns a donation request into a ledger record and the
// transfer effects an external funds mover must execute.
//
// Evaluation is pure apart from read-only registry lookups; nothing here
// writes to storage or moves funds.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	ledger "alpine/internal/ledger/models"
	registry "alpine/internal/registry/models"
	"alpine/pkg/address"
	dErrors "alpine/pkg/domain-errors"
	"alpine/pkg/requestcontext"
)

const (
	DefaultMaxMessageLength = 250
)

// DefaultCommissionRate is the platform's share of the primary coin.
var DefaultCommissionRate = decimal.RequireFromString("0.03")

// Resolver finds registered identities by username, ignoring case.
type Resolver interface {
	ResolveByUsername(ctx context.Context, username string) (*registry.Identity, error)
}

// Config selects the policy variant.
type Config struct {
	// FeeSplit routes CommissionRate of the primary coin to PlatformAddress.
	// When false the whole attached funds list goes to the recipient.
	FeeSplit        bool
	CommissionRate  decimal.Decimal
	PlatformAddress string
	// MaxMessageLength bounds the message in characters. Zero disables the check.
	MaxMessageLength int
}

// DefaultConfig is the fee-splitting variant with the 250 character message bound.
func DefaultConfig(platformAddress string) Config {
	return Config{
		FeeSplit:         true,
		CommissionRate:   DefaultCommissionRate,
		PlatformAddress:  platformAddress,
		MaxMessageLength: DefaultMaxMessageLength,
	}
}

// Validate checks the configuration before any request is served.
func (c Config) Validate() error {
	if !c.FeeSplit {
		return nil
	}
	if c.PlatformAddress == "" {
		return errors.New("fee split requires a platform address")
	}
	if c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("commission rate %s must be in [0, 1)", c.CommissionRate)
	}
	return nil
}

// Request is a donation as received from an authenticated caller.
type Request struct {
	// SenderUsername is empty for anonymous donations.
	SenderUsername    string
	RecipientUsername string
	Message           string
	Funds             ledger.Funds
	// Caller is the authenticated address that signed the request.
	Caller string
}

// Policy evaluates donation requests.
type Policy struct {
	registry  Resolver
	validator address.Validator
	cfg       Config
	clock     func(ctx context.Context) time.Time
}

type Option func(*Policy)

// WithClock overrides where record timestamps come from. A clock returning the
// zero time produces records without a timestamp.
func WithClock(clock func(ctx context.Context) time.Time) Option {
	return func(p *Policy) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func NewPolicy(registry Resolver, validator address.Validator, cfg Config, opts ...Option) *Policy {
	p := &Policy{
		registry:  registry,
		validator: validator,
		cfg:       cfg,
		clock:     requestcontext.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) Config() Config {
	return p.cfg
}

// Evaluate validates req and computes the record to append and the effects to execute.
// Checks run in a fixed order so the first failing rule decides the error kind.
func (p *Policy) Evaluate(ctx context.Context, req Request) (*Plan, error) {
	if req.RecipientUsername == "" {
		return nil, registry.ErrEmptyUsername()
	}
	if req.Funds.IsEmpty() {
		return nil, ledger.ErrNoDonation()
	}

	sender, err := p.resolveSender(ctx, req)
	if err != nil {
		return nil, err
	}
	if sender.Address != req.Caller {
		return nil, registry.ErrInvalidWalletAddress(sender.Address)
	}

	if p.cfg.MaxMessageLength > 0 && utf8.RuneCountInString(req.Message) > p.cfg.MaxMessageLength {
		return nil, ledger.ErrDonationMessageTooLong(p.cfg.MaxMessageLength)
	}

	recipient, err := p.registry.ResolveByUsername(ctx, req.RecipientUsername)
	if err != nil {
		return nil, err
	}

	record := &ledger.Donation{
		Sender:    *sender,
		Recipient: *recipient,
		Amount:    append(ledger.Funds(nil), req.Funds...),
		Message:   req.Message,
	}
	if now := p.clock(ctx); !now.IsZero() {
		ts := now.UTC()
		record.Timestamp = &ts
	}

	effects, err := p.effects(recipient.Address, req.Funds)
	if err != nil {
		return nil, err
	}
	return &Plan{Record: record, Effects: effects}, nil
}

func (p *Policy) resolveSender(ctx context.Context, req Request) (*registry.Identity, error) {
	if req.SenderUsername == "" {
		return registry.NewIdentity(p.validator, req.Caller, "")
	}
	return p.registry.ResolveByUsername(ctx, req.SenderUsername)
}

func (p *Policy) effects(recipient string, funds ledger.Funds) ([]Effect, error) {
	if !p.cfg.FeeSplit {
		return []Effect{{Kind: EffectPayout, ToAddress: recipient, Amount: append(ledger.Funds(nil), funds...)}}, nil
	}

	primary := funds[0]
	commission, err := Commission(primary.Amount, p.cfg.CommissionRate)
	if err != nil {
		return nil, err
	}
	effects := []Effect{{
		Kind:      EffectPayout,
		ToAddress: recipient,
		Amount:    ledger.Funds{{Denom: primary.Denom, Amount: primary.Amount - commission}},
	}}
	if commission > 0 {
		effects = append(effects, Effect{
			Kind:      EffectCommission,
			ToAddress: p.cfg.PlatformAddress,
			Amount:    ledger.Funds{{Denom: primary.Denom, Amount: commission}},
		})
	}
	return effects, nil
}

// Commission returns floor(quantity * rate).
func Commission(quantity uint64, rate decimal.Decimal) (uint64, error) {
	q := decimal.NewFromBigInt(new(big.Int).SetUint64(quantity), 0)
	fee := q.Mul(rate).Floor()
	if fee.IsNegative() || fee.GreaterThan(q) {
		return 0, dErrors.New(dErrors.CodeInternal, "commission out of range").
			WithDetail("rate", rate.String())
	}
	return fee.BigInt().Uint64(), nil
}
