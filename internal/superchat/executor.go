package superchat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledger "alpine/internal/ledger/models"
	registry "alpine/internal/registry/models"
	"alpine/internal/transfer"
	"alpine/pkg/address"
	dErrors "alpine/pkg/domain-errors"
	txcontext "alpine/pkg/platform/tx"
	"alpine/pkg/requestcontext"
)

const tracerName = "alpine/superchat"

// Registry is the registry surface used by intents and queries.
type Registry interface {
	Register(ctx context.Context, identity *registry.Identity, desired string) (*registry.Identity, error)
	ResolveByUsername(ctx context.Context, username string) (*registry.Identity, error)
	ResolveByAddress(ctx context.Context, addr string) (*registry.Identity, error)
	UsernameIsTaken(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]*registry.Identity, error)
}

// Ledger is the ledger surface used by intents and queries.
type Ledger interface {
	Append(ctx context.Context, donation *ledger.Donation) (uint64, error)
	Get(ctx context.Context, id uint64) (*ledger.Donation, error)
	ListBySender(ctx context.Context, addr string) ([]*ledger.Donation, error)
	ListByRecipient(ctx context.Context, addr string) ([]*ledger.Donation, error)
	Count(ctx context.Context) (uint64, error)
}

type Policy interface {
	Evaluate(ctx context.Context, req transfer.Request) (*transfer.Plan, error)
}

type Mover interface {
	Move(ctx context.Context, donationID uint64, effects []transfer.Effect) error
}

// Executor runs intents. Each intent runs in one unit of work: a failure at any
// step leaves no record, no counter advance and no registry entry behind.
type Executor struct {
	registry  Registry
	ledger    Ledger
	policy    Policy
	mover     Mover
	validator address.Validator
	tx        txcontext.Runner
	logger    *slog.Logger
	tracer    trace.Tracer
}

type ExecutorOption func(*Executor)

func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func WithTx(runner txcontext.Runner) ExecutorOption {
	return func(e *Executor) {
		if runner != nil {
			e.tx = runner
		}
	}
}

func NewExecutor(reg Registry, led Ledger, policy Policy, mover Mover, validator address.Validator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:  reg,
		ledger:    led,
		policy:    policy,
		mover:     mover,
		validator: validator,
		tx:        txcontext.NewMutexRunner(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs intent on behalf of the caller carried by ctx.
func (e *Executor) Execute(ctx context.Context, intent Intent) (result *Result, err error) {
	name := intentLabel(intent)
	ctx, span := e.tracer.Start(ctx, "superchat.execute "+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("intent", name)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	caller := requestcontext.CallerAddress(ctx)
	if caller == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller not authenticated")
	}

	switch in := intent.(type) {
	case RegisterUser:
		return e.registerUser(ctx, caller, in)
	case SendDonation:
		return e.sendDonation(ctx, caller, in)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported intent %T", intent))
	}
}

func (e *Executor) registerUser(ctx context.Context, caller string, in RegisterUser) (*Result, error) {
	if in.Identity.Address != caller {
		return nil, registry.ErrInvalidWalletAddress(in.Identity.Address)
	}
	identity, err := registry.NewIdentity(e.validator, in.Identity.Address, in.Identity.Username)
	if err != nil {
		return nil, err
	}

	var stored *registry.Identity
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		stored, err = e.registry.Register(ctx, identity, in.Username)
		return err
	})
	if err != nil {
		e.logFailure(ctx, "register_user", err)
		return nil, err
	}

	return &Result{
		Attributes: []Attribute{{Key: "username", Value: stored.Username}},
		User:       stored,
	}, nil
}

func (e *Executor) sendDonation(ctx context.Context, caller string, in SendDonation) (*Result, error) {
	var (
		plan *transfer.Plan
		id   uint64
	)
	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		plan, err = e.policy.Evaluate(ctx, transfer.Request{
			SenderUsername:    in.Sender,
			RecipientUsername: in.Recipient,
			Message:           in.Message,
			Funds:             in.Funds,
			Caller:            caller,
		})
		if err != nil {
			return err
		}
		id, err = e.ledger.Append(ctx, plan.Record)
		if err != nil {
			return err
		}
		// Last step: a failed hand-off rolls the record back. A hand-off that
		// succeeds before a failed commit is not retracted.
		return e.mover.Move(ctx, id, plan.Effects)
	})
	if err != nil {
		e.logFailure(ctx, "send_donation", err)
		return nil, err
	}

	record := plan.Record
	timestamp := ""
	if record.Timestamp != nil {
		timestamp = record.Timestamp.Format(time.RFC3339Nano)
	}
	return &Result{
		Attributes: []Attribute{
			{Key: "donation_id", Value: strconv.FormatUint(id, 10)},
			{Key: "sender_address", Value: record.Sender.Address},
			{Key: "sender_username", Value: record.Sender.Username},
			{Key: "recipient_address", Value: record.Recipient.Address},
			{Key: "recipient_username", Value: record.Recipient.Username},
			{Key: "amount", Value: record.Amount.String()},
			{Key: "message", Value: record.Message},
			{Key: "timestamp", Value: timestamp},
		},
		Effects:    plan.Effects,
		DonationID: id,
	}, nil
}

func (e *Executor) logFailure(ctx context.Context, intent string, err error) {
	if e.logger == nil {
		return
	}
	level := slog.LevelWarn
	if !dErrors.IsClientError(dErrors.CodeOf(err)) {
		level = slog.LevelError
	}
	e.logger.Log(ctx, level, "intent failed",
		"intent", intent,
		"code", string(dErrors.CodeOf(err)),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
