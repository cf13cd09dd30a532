package models

import (
	"fmt"
	"strings"
	"time"

	registry "alpine/internal/registry/models"
	dErrors "alpine/pkg/domain-errors"
)

// Coin is a quantity of one denomination. Amount is encoded as a JSON string so
// large values survive clients that parse numbers as float64.
type Coin struct {
	Denom  string `json:"denom"`
	Amount uint64 `json:"amount,string"`
}

func (c Coin) String() string {
	return fmt.Sprintf("%d%s", c.Amount, c.Denom)
}

// Funds is the ordered list of coins attached to a donation.
type Funds []Coin

// IsEmpty reports whether there is nothing to donate. Only the first coin is
// inspected: donations carry a single primary denomination.
func (f Funds) IsEmpty() bool {
	return len(f) == 0 || f[0].Amount == 0
}

func (f Funds) String() string {
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Donation is one immutable ledger record.
//
// Invariants:
//   - ID is assigned once by the ledger, starting at 1, and never reused
//   - Amount is non-empty with a positive first coin when persisted
//   - Sender and Recipient are snapshots taken when the donation was made
type Donation struct {
	ID        uint64            `json:"id"`
	Sender    registry.Identity `json:"sender"`
	Recipient registry.Identity `json:"recipient"`
	Amount    Funds             `json:"amount"`
	Message   string            `json:"message"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

// SortTime is the timestamp used for chronological ordering. Records without a
// timestamp sort as the earliest possible time.
func (d *Donation) SortTime() time.Time {
	if d.Timestamp == nil {
		return time.Time{}
	}
	return *d.Timestamp
}

func ErrNoDonation() error {
	return dErrors.New(dErrors.CodeNoDonation, "no donation attached")
}

func ErrDonationNotFound(id uint64) error {
	return dErrors.New(dErrors.CodeDonationNotFound, "donation not found").
		WithDetail("id", fmt.Sprint(id))
}

func ErrDonationMessageTooLong(limit int) error {
	return dErrors.New(dErrors.CodeDonationMessageTooLong, "donation message too long").
		WithDetail("limit", fmt.Sprint(limit))
}

func ErrDuplicateDonationID(id uint64) error {
	return dErrors.New(dErrors.CodeUnauthorized, "donation id already used").
		WithDetail("id", fmt.Sprint(id))
}
