// Package address validates wallet addresses at the trust boundary.
//
// Addresses are opaque strings everywhere else in the codebase; this package is
// the only place that knows their syntax.
package address

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Validator reports whether an address is syntactically valid.
type Validator interface {
	Validate(address string) bool
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(address string) bool

func (f ValidatorFunc) Validate(address string) bool {
	return f(address)
}

// Bech32Validator accepts lower-case bech32 account addresses with one of the
// configured human-readable prefixes and a 20 or 32 byte payload.
type Bech32Validator struct {
	prefixes map[string]struct{}
}

// NewBech32 builds a validator. With no prefixes any human-readable part is accepted.
func NewBech32(prefixes ...string) *Bech32Validator {
	v := &Bech32Validator{prefixes: make(map[string]struct{}, len(prefixes))}
	for _, p := range prefixes {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			v.prefixes[p] = struct{}{}
		}
	}
	return v
}

func (v *Bech32Validator) Validate(address string) bool {
	if address == "" || address != strings.ToLower(address) {
		return false
	}
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return false
	}
	if len(v.prefixes) > 0 {
		if _, ok := v.prefixes[hrp]; !ok {
			return false
		}
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return false
	}
	return len(payload) == 20 || len(payload) == 32
}

// Encode renders a raw account payload as a bech32 address.
func Encode(prefix string, payload []byte) (string, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}
