package address

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, prefix string, payload []byte) string {
	t.Helper()
	addr, err := Encode(prefix, payload)
	require.NoError(t, err)
	return addr
}

func TestBech32Validator(t *testing.T) {
	v := NewBech32("osmo", "juno")
	valid := mustEncode(t, "osmo", bytes.Repeat([]byte{7}, 20))

	t.Run("accepts configured prefix", func(t *testing.T) {
		assert.True(t, v.Validate(valid))
		assert.True(t, v.Validate(mustEncode(t, "juno", bytes.Repeat([]byte{1}, 32))))
	})

	t.Run("rejects other prefixes", func(t *testing.T) {
		assert.False(t, v.Validate(mustEncode(t, "cosmos", bytes.Repeat([]byte{7}, 20))))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		assert.False(t, v.Validate(""))
		assert.False(t, v.Validate("not-an-address"))
		assert.False(t, v.Validate(strings.ToUpper(valid)))
		assert.False(t, v.Validate(corruptChecksum(valid)))
	})

	t.Run("rejects unexpected payload length", func(t *testing.T) {
		assert.False(t, v.Validate(mustEncode(t, "osmo", bytes.Repeat([]byte{7}, 8))))
	})

	t.Run("no prefixes accepts any prefix", func(t *testing.T) {
		assert.True(t, NewBech32().Validate(mustEncode(t, "cosmos", bytes.Repeat([]byte{9}, 20))))
	})
}

func TestValidatorFunc(t *testing.T) {
	v := ValidatorFunc(func(a string) bool { return a == "ok" })
	assert.True(t, v.Validate("ok"))
	assert.False(t, v.Validate("nope"))
}

func corruptChecksum(addr string) string {
	last := addr[len(addr)-1]
	replacement := byte('q')
	if last == 'q' {
		replacement = 'p'
	}
	return addr[:len(addr)-1] + string(replacement)
}
