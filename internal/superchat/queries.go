package superchat

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledger "alpine/internal/ledger/models"
	registry "alpine/internal/registry/models"
	"alpine/pkg/address"
	dErrors "alpine/pkg/domain-errors"
)

// Queries answers the read-only surface. Nothing here writes.
type Queries struct {
	registry  Registry
	ledger    Ledger
	validator address.Validator
	tracer    trace.Tracer
}

func NewQueries(reg Registry, led Ledger, validator address.Validator) *Queries {
	return &Queries{registry: reg, ledger: led, validator: validator, tracer: otel.Tracer(tracerName)}
}

// DonationEntry pairs a ledger id with its record.
type DonationEntry struct {
	ID       uint64           `json:"id"`
	Donation *ledger.Donation `json:"donation"`
}

// SentDonations lists donations sent by the user registered as username, oldest first.
func (q *Queries) SentDonations(ctx context.Context, username string) ([]DonationEntry, error) {
	sender, err := q.registry.ResolveByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	donations, err := q.ledger.ListBySender(ctx, sender.Address)
	if err != nil {
		return nil, err
	}
	return entries(donations), nil
}

// ReceivedDonations lists donations received by the user registered as username, oldest first.
func (q *Queries) ReceivedDonations(ctx context.Context, username string) ([]DonationEntry, error) {
	recipient, err := q.registry.ResolveByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	donations, err := q.ledger.ListByRecipient(ctx, recipient.Address)
	if err != nil {
		return nil, err
	}
	return entries(donations), nil
}

func (q *Queries) Donation(ctx context.Context, id uint64) (*ledger.Donation, error) {
	return q.ledger.Get(ctx, id)
}

func (q *Queries) DonationCount(ctx context.Context) (uint64, error) {
	return q.ledger.Count(ctx)
}

// IsUsernameAvailable reports whether no casing of username is registered.
func (q *Queries) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := q.registry.UsernameIsTaken(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// AllUsers lists registered identities ordered by username.
func (q *Queries) AllUsers(ctx context.Context) ([]*registry.Identity, error) {
	return q.registry.List(ctx)
}

// UserByAddress returns the registered identity or, when the address is not
// registered, an anonymous identity for it. A malformed address is an error.
func (q *Queries) UserByAddress(ctx context.Context, addr string) (*registry.Identity, error) {
	identity, err := q.registry.ResolveByAddress(ctx, addr)
	if err == nil {
		return identity, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeUserNotFound) {
		return nil, err
	}
	return registry.NewIdentity(q.validator, addr, "")
}

// UserByName returns the registered identity or the empty identity when no
// casing of username is registered. Not found is not an error here.
func (q *Queries) UserByName(ctx context.Context, username string) (*registry.Identity, error) {
	identity, err := q.registry.ResolveByUsername(ctx, username)
	if err == nil {
		return identity, nil
	}
	if dErrors.HasCode(err, dErrors.CodeUserNotFound) {
		return registry.Empty(), nil
	}
	return nil, err
}

func entries(donations []*ledger.Donation) []DonationEntry {
	out := make([]DonationEntry, 0, len(donations))
	for _, d := range donations {
		out = append(out, DonationEntry{ID: d.ID, Donation: d})
	}
	return out
}

// Query is a read-only request. Each concrete type carries exactly the fields it needs.
type Query interface {
	queryName() string
}

type GetSentDonations struct {
	Sender string `json:"sender"`
}

type GetReceivedDonations struct {
	Recipient string `json:"recipient"`
}

type GetSingleDonation struct {
	ID uint64 `json:"id"`
}

type GetDonationCount struct{}

type IsUsernameAvailable struct {
	Username string `json:"username"`
}

type GetAllUsers struct{}

type GetUserByAddr struct {
	Address string `json:"address"`
}

type GetUserByName struct {
	Username string `json:"username"`
}

func (GetSentDonations) queryName() string     { return "get_sent_donations" }
func (GetReceivedDonations) queryName() string { return "get_received_donations" }
func (GetSingleDonation) queryName() string    { return "get_single_donation" }
func (GetDonationCount) queryName() string     { return "get_donation_count" }
func (IsUsernameAvailable) queryName() string  { return "is_username_available" }
func (GetAllUsers) queryName() string          { return "get_all_users" }
func (GetUserByAddr) queryName() string        { return "get_user_by_addr" }
func (GetUserByName) queryName() string        { return "get_user_by_name" }

// queryLabel names query for tracing. Nil and pointer queries are unsupported.
func queryLabel(query Query) string {
	switch query.(type) {
	case GetSentDonations, GetReceivedDonations, GetSingleDonation, GetDonationCount,
		IsUsernameAvailable, GetAllUsers, GetUserByAddr, GetUserByName:
		return query.queryName()
	}
	return "unsupported"
}

type MultiDonationResponse struct {
	Donations []DonationEntry `json:"donations"`
}

type SingleDonationResponse struct {
	Donation *ledger.Donation `json:"donation"`
}

type DonationCountResponse struct {
	Count uint64 `json:"count"`
}

type UsernameAvailableResponse struct {
	IsAvailable bool `json:"is_available"`
}

type MultiUserResponse struct {
	Users []*registry.Identity `json:"users"`
}

type UserResponse struct {
	User *registry.Identity `json:"user"`
}

// Run dispatches query and wraps the answer in its response type.
func (q *Queries) Run(ctx context.Context, query Query) (resp any, err error) {
	name := queryLabel(query)
	ctx, span := q.tracer.Start(ctx, "superchat.query "+name,
		trace.WithAttributes(attribute.String("query", name)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	switch qq := query.(type) {
	case GetSentDonations:
		donations, err := q.SentDonations(ctx, qq.Sender)
		if err != nil {
			return nil, err
		}
		return MultiDonationResponse{Donations: donations}, nil
	case GetReceivedDonations:
		donations, err := q.ReceivedDonations(ctx, qq.Recipient)
		if err != nil {
			return nil, err
		}
		return MultiDonationResponse{Donations: donations}, nil
	case GetSingleDonation:
		donation, err := q.Donation(ctx, qq.ID)
		if err != nil {
			return nil, err
		}
		return SingleDonationResponse{Donation: donation}, nil
	case GetDonationCount:
		count, err := q.DonationCount(ctx)
		if err != nil {
			return nil, err
		}
		return DonationCountResponse{Count: count}, nil
	case IsUsernameAvailable:
		available, err := q.IsUsernameAvailable(ctx, qq.Username)
		if err != nil {
			return nil, err
		}
		return UsernameAvailableResponse{IsAvailable: available}, nil
	case GetAllUsers:
		users, err := q.AllUsers(ctx)
		if err != nil {
			return nil, err
		}
		if users == nil {
			users = []*registry.Identity{}
		}
		return MultiUserResponse{Users: users}, nil
	case GetUserByAddr:
		user, err := q.UserByAddress(ctx, qq.Address)
		if err != nil {
			return nil, err
		}
		return UserResponse{User: user}, nil
	case GetUserByName:
		user, err := q.UserByName(ctx, qq.Username)
		if err != nil {
			return nil, err
		}
		return UserResponse{User: user}, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported query %T", query))
	}
}
