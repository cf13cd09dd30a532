package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpine/pkg/address"
	dErrors "alpine/pkg/domain-errors"
)

var acceptAll = address.ValidatorFunc(func(string) bool { return true })

func TestNewIdentity(t *testing.T) {
	t.Run("empty address is invalid", func(t *testing.T) {
		_, err := NewIdentity(acceptAll, "", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidWalletAddress))
		assert.Equal(t, "", dErrors.Detail(err, "address"))
	})

	t.Run("validator rejection is invalid", func(t *testing.T) {
		rejectAll := address.ValidatorFunc(func(string) bool { return false })
		_, err := NewIdentity(rejectAll, "junk", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidWalletAddress))
		assert.Equal(t, "junk", dErrors.Detail(err, "address"))
	})

	t.Run("anonymous identity", func(t *testing.T) {
		id, err := NewIdentity(acceptAll, "osmo1abc", "")
		require.NoError(t, err)
		assert.Equal(t, "osmo1abc", id.Address)
		assert.True(t, id.IsAnonymous())
	})

	t.Run("named identity keeps username", func(t *testing.T) {
		id, err := NewIdentity(acceptAll, "osmo1abc", "this-Is-A-Valid_Username1234")
		require.NoError(t, err)
		assert.Equal(t, "this-Is-A-Valid_Username1234", id.Username)
		assert.False(t, id.IsAnonymous())
	})
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		code     dErrors.Code
		reason   string
	}{
		{"empty", "", dErrors.CodeEmptyUsername, ""},
		{"too long", "ThisUsernameIsTooLongAndWillCauseAnError", dErrors.CodeInvalidUsername, ReasonTooLong},
		{"backslash", `alpine\user`, dErrors.CodeInvalidUsername, ReasonInvalidChars},
		{"spaces", "alpine user", dErrors.CodeInvalidUsername, ReasonInvalidChars},
		{"percent encoded", "alpine%20user", dErrors.CodeInvalidUsername, ReasonInvalidChars},
		{"greek letter", "alpineλuser", dErrors.CodeInvalidUsername, ReasonInvalidChars},
		{"accented letter", "café", dErrors.CodeInvalidUsername, ReasonInvalidChars},
		{"non-ascii digit", "user٣", dErrors.CodeInvalidUsername, ReasonInvalidChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUsername(tt.username)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, tt.code))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, dErrors.Detail(err, "reason"))
				assert.Equal(t, tt.username, dErrors.Detail(err, "username"))
			}
		})
	}

	t.Run("length counts characters not bytes", func(t *testing.T) {
		name := strings.Repeat("a", MaxUsernameLength)
		got, err := ValidateUsername(name)
		require.NoError(t, err)
		assert.Equal(t, name, got)

		_, err = ValidateUsername(name + "b")
		assert.Equal(t, ReasonTooLong, dErrors.Detail(err, "reason"))
	})

	t.Run("overlong non-ascii reports length first", func(t *testing.T) {
		_, err := ValidateUsername(strings.Repeat("é", 33))
		assert.Equal(t, ReasonTooLong, dErrors.Detail(err, "reason"))
	})

	t.Run("valid username returned unchanged", func(t *testing.T) {
		got, err := ValidateUsername("Alpine_User-1")
		require.NoError(t, err)
		assert.Equal(t, "Alpine_User-1", got)
	})
}
