package service

import (
	"context"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"alpine/internal/registry/models"
	"alpine/internal/registry/store"
	dErrors "alpine/pkg/domain-errors"
	"alpine/pkg/testutil"
)

func flipCase(s string, flips []bool) string {
	out := []rune(s)
	for i, r := range out {
		if i < len(flips) && flips[i] {
			if unicode.IsUpper(r) {
				out[i] = unicode.ToLower(r)
			} else {
				out[i] = unicode.ToUpper(r)
			}
		}
	}
	return string(out)
}

// Registering u and resolving any casing of u yields the stored identity.
func TestRegisterThenResolveIgnoresCase(t *testing.T) {
	addr := testutil.Address(t, 10)

	rapid.Check(t, func(rt *rapid.T) {
		svc := New(store.NewInMemory())
		ctx := context.Background()
		username := rapid.StringMatching(`[A-Za-z0-9_-]{1,32}`).Draw(rt, "username")
		flips := rapid.SliceOfN(rapid.Bool(), len(username), len(username)).Draw(rt, "flips")

		_, err := svc.Register(ctx, &models.Identity{Address: addr}, username)
		if err != nil {
			rt.Fatalf("register %q: %v", username, err)
		}

		got, err := svc.ResolveByUsername(ctx, flipCase(username, flips))
		if err != nil {
			rt.Fatalf("resolve: %v", err)
		}
		if got.Username != username || got.Address != addr {
			rt.Fatalf("resolved %+v, want %s/%s", got, addr, username)
		}
	})
}

// Two usernames differing only by case cannot both be registered.
func TestCaseVariantIsUnavailable(t *testing.T) {
	first := testutil.Address(t, 20)
	second := testutil.Address(t, 40)

	rapid.Check(t, func(rt *rapid.T) {
		svc := New(store.NewInMemory())
		ctx := context.Background()
		u1 := rapid.StringMatching(`[a-z][A-Za-z0-9_-]{0,31}`).Draw(rt, "u1")
		u2 := strings.ToUpper(u1[:1]) + u1[1:]

		if _, err := svc.Register(ctx, &models.Identity{Address: first}, u1); err != nil {
			rt.Fatalf("register %q: %v", u1, err)
		}
		_, err := svc.Register(ctx, &models.Identity{Address: second}, u2)
		if !dErrors.HasCode(err, dErrors.CodeUsernameNotAvailable) {
			rt.Fatalf("register %q after %q: got %v", u2, u1, err)
		}
	})
}

func TestRegistrationScenarios(t *testing.T) {
	ctx := context.Background()
	x := testutil.Address(t, 1)
	y := testutil.Address(t, 2)

	t.Run("anonymous address", func(t *testing.T) {
		svc := New(store.NewInMemory())

		t.Run("registers alpine_user_1", func(t *testing.T) {
			got, err := svc.Register(ctx, &models.Identity{Address: x}, "alpine_user_1")
			require.NoError(t, err)
			assert.Equal(t, "alpine_user_1", got.Username)

			t.Run("upper-cased name is taken", func(t *testing.T) {
				taken, err := svc.UsernameIsTaken(ctx, "ALPINE_USER_1")
				require.NoError(t, err)
				assert.True(t, taken)
			})

			t.Run("another address cannot claim it", func(t *testing.T) {
				_, err := svc.Register(ctx, &models.Identity{Address: y}, "alpine_user_1")
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeUsernameNotAvailable))
				assert.Equal(t, "alpine_user_1", dErrors.Detail(err, "username"))
			})

			t.Run("same address cannot register again", func(t *testing.T) {
				_, err := svc.Register(ctx, &models.Identity{Address: x}, "second_name")
				assert.True(t, dErrors.HasCode(err, dErrors.CodeAddressAlreadyRegistered))
			})
		})
	})

	t.Run("username longer than 32 characters", func(t *testing.T) {
		svc := New(store.NewInMemory())
		_, err := svc.Register(ctx, &models.Identity{Address: x}, "ThisUsernameIsTooLongAndWillCauseAnError")

		t.Run("fails with the length reason", func(t *testing.T) {
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidUsername))
			assert.Equal(t, models.ReasonTooLong, dErrors.Detail(err, "reason"))
		})
	})
}

func TestListIsOrderedByUsername(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewInMemory())
	for i, name := range []string{"mike", "alice", "zoe"} {
		_, err := svc.Register(ctx, &models.Identity{Address: testutil.Address(t, byte(i*30))}, name)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, identity := range list {
		names = append(names, identity.Username)
	}
	assert.Equal(t, []string{"alice", "mike", "zoe"}, names)
}
