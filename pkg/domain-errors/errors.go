// Package domainerrors defines the error taxonomy shared by services and transports.
//
// Services return *Error values carrying a Code. Transports translate the Code into a
// status and an error envelope without inspecting messages. Stores never construct
// these directly; they return pkg/platform/sentinel errors which services translate.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies an error kind. Codes are stable and part of the public API.
type Code string

const (
	// Transport and infrastructure codes.
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal_error"
	CodeStorage      Code = "storage_error"

	// Registry codes.
	CodeInvalidWalletAddress     Code = "invalid_wallet_address"
	CodeUserAlreadyExists        Code = "user_already_exists"
	CodeAddressAlreadyRegistered Code = "address_already_registered"
	CodeUsernameNotAvailable     Code = "username_not_available"
	CodeUserNotFound             Code = "user_not_found"
	CodeEmptyUsername            Code = "empty_username"
	CodeInvalidUsername          Code = "invalid_username"

	// Ledger and transfer codes.
	CodeNoDonation             Code = "no_donation"
	CodeDonationMessageTooLong Code = "donation_message_too_long"
	CodeDonationNotFound       Code = "donation_not_found"
)

// Error is a coded domain error. Details carry the offending values verbatim
// (username, address, reason) so callers never parse messages.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a context value and returns the same error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string, 2)
	}
	e.Details[key] = value
	return e
}

// New creates a coded error.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost *Error in the chain has the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Detail returns a detail value from the outermost *Error, or "".
func Detail(err error, key string) string {
	var de *Error
	if errors.As(err, &de) && de.Details != nil {
		return de.Details[key]
	}
	return ""
}

// ToHTTPStatus maps a code to the HTTP status used by the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeEmptyUsername, CodeInvalidUsername, CodeNoDonation,
		CodeDonationMessageTooLong, CodeInvalidWalletAddress:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeUserNotFound, CodeDonationNotFound:
		return http.StatusNotFound
	case CodeUserAlreadyExists, CodeAddressAlreadyRegistered, CodeUsernameNotAvailable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the code describes a caller mistake rather than a server fault.
func IsClientError(code Code) bool {
	return ToHTTPStatus(code) < http.StatusInternalServerError
}
