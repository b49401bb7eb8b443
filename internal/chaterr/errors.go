// ABOUTME: Error taxonomy shared by the credential store, directory, ledger and service
// ABOUTME: Kinds are sentinels; Error carries the client-facing message and unwraps to its kind

package chaterr

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrInvalidArgument covers missing or blank required fields and duplicate registration.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidCredentials is returned for a bad login. It is deliberately the
	// same for an unknown user and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotFound is returned when a referenced user or conversation is absent.
	ErrNotFound = errors.New("not found")
)

// Error is a classified error whose message is safe to show to a client.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Invalid returns an ErrInvalidArgument with the given message.
func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound with the given message.
func NotFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// BadCredentials returns the single login failure error.
func BadCredentials() error {
	return &Error{Kind: ErrInvalidCredentials, Msg: "Invalid credentials"}
}

// Message returns the client-facing text of err. Unclassified errors get a
// generic message so internal details never leak to a caller.
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Msg
	}
	return "internal error"
}
