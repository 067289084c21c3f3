package payment

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindMissingCredentials          Kind = "MissingCredentials"
	KindAuthenticationFailed        Kind = "AuthenticationFailed"
	KindValidationError             Kind = "ValidationError"
	KindNetworkUnreachable          Kind = "NetworkUnreachable"
	KindSignatureVerificationFailed Kind = "SignatureVerificationFailed"
	KindStatusFetchFailed           Kind = "StatusFetchFailed"
	KindUnknownGatewayError         Kind = "UnknownGatewayError"
)

// Sentinels for errors.Is matching against a *Error of the same kind.
var (
	ErrMissingCredentials          = &Error{Kind: KindMissingCredentials}
	ErrAuthenticationFailed        = &Error{Kind: KindAuthenticationFailed}
	ErrValidation                  = &Error{Kind: KindValidationError}
	ErrNetworkUnreachable          = &Error{Kind: KindNetworkUnreachable}
	ErrSignatureVerificationFailed = &Error{Kind: KindSignatureVerificationFailed}
	ErrStatusFetchFailed           = &Error{Kind: KindStatusFetchFailed}
	ErrUnknownGateway              = &Error{Kind: KindUnknownGatewayError}
)

// Error is a gateway failure converted to a single user-facing message.
type Error struct {
	Kind    Kind
	Gateway string
	Message string
	// Detail carries vendor field-level information for validation errors.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Gateway != "" {
		return e.Gateway + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of a gateway error, or "" if err is not one.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

func newError(kind Kind, gateway, message string, cause error) *Error {
	return &Error{Kind: kind, Gateway: gateway, Message: message, Err: cause}
}

func missingCredentials(gateway string, names ...string) *Error {
	return &Error{
		Kind:    KindMissingCredentials,
		Gateway: gateway,
		Message: fmt.Sprintf("credentials are missing, check %v", names),
	}
}
