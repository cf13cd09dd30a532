package models

import (
	"fmt"

	"alpine/pkg/address"
	dErrors "alpine/pkg/domain-errors"
	"alpine/pkg/platform/sentinel"
)

// ErrAddressInUse is returned by stores when a save collides on the address key.
// It matches sentinel.ErrAlreadyUsed.
var ErrAddressInUse = fmt.Errorf("address %w", sentinel.ErrAlreadyUsed)

// Identity is a participant: a validated wallet address and an optional username.
//
// Invariants:
//   - Address is non-empty and passed the address validator at construction
//   - Username "" means anonymous (not registered)
//   - At most one Identity per Address is ever stored with a non-empty Username
//
// Identities are built on every request; the registry persists them keyed by
// username and by address.
type Identity struct {
	Address  string `json:"address"`
	Username string `json:"username"`
}

// NewIdentity validates the address and builds an Identity. The username is taken
// as-is; registration applies the username rules separately.
func NewIdentity(v address.Validator, addr string, username string) (*Identity, error) {
	if addr == "" || !v.Validate(addr) {
		return nil, ErrInvalidWalletAddress(addr)
	}
	return &Identity{Address: addr, Username: username}, nil
}

// Empty is the sentinel returned by lookups that treat "not found" as a value.
func Empty() *Identity {
	return &Identity{}
}

// IsAnonymous reports whether the identity has no registered username.
func (i *Identity) IsAnonymous() bool {
	return i.Username == ""
}

func ErrInvalidWalletAddress(addr string) error {
	return dErrors.New(dErrors.CodeInvalidWalletAddress, "invalid wallet address").
		WithDetail("address", addr)
}

func ErrUserNotFound(user string) error {
	return dErrors.New(dErrors.CodeUserNotFound, "user not found").
		WithDetail("user", user)
}

func ErrUserAlreadyExists() error {
	return dErrors.New(dErrors.CodeUserAlreadyExists, "address already registered")
}

func ErrAddressAlreadyRegistered(addr string) error {
	return dErrors.New(dErrors.CodeAddressAlreadyRegistered, "address already has a registered username").
		WithDetail("address", addr)
}

func ErrUsernameNotAvailable(username string) error {
	return dErrors.New(dErrors.CodeUsernameNotAvailable, "username taken").
		WithDetail("username", username)
}
