package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"alpine/pkg/address"
)

// AddressPrefix is the human-readable part used for wallet addresses in tests.
const AddressPrefix = "alp"

// Address returns a deterministic valid wallet address derived from seed.
// Different seeds give different addresses.
func Address(t testing.TB, seed byte) string {
	t.Helper()
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = seed + byte(i)
	}
	addr, err := address.Encode(AddressPrefix, payload)
	require.NoError(t, err)
	return addr
}

// Validator returns the address validator matching Address.
func Validator() address.Validator {
	return address.NewBech32(AddressPrefix)
}
