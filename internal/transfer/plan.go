package transfer

import (
	ledger "alpine/internal/ledger/models"
)

// EffectKind says why funds move.
type EffectKind string

const (
	EffectPayout     EffectKind = "payout"
	EffectCommission EffectKind = "commission"
)

// Effect is one instruction for the funds mover: send Amount to ToAddress.
type Effect struct {
	Kind      EffectKind   `json:"kind"`
	ToAddress string       `json:"to_address"`
	Amount    ledger.Funds `json:"amount"`
}

// Plan is the outcome of a successful evaluation. Record has no id yet; the
// ledger assigns one when it is appended.
type Plan struct {
	Record  *ledger.Donation
	Effects []Effect
}

// Total sums the effects per denomination.
func (p *Plan) Total() map[string]uint64 {
	out := make(map[string]uint64)
	for _, e := range p.Effects {
		for _, c := range e.Amount {
			out[c.Denom] += c.Amount
		}
	}
	return out
}
