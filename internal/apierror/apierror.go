// Package apierror defines the single error type surfaced by the finance API client.
//
// Every failure observed at the HTTP boundary is converted into an *Error whose Kind
// tells callers what went wrong:
//   - KindValidation: HTTP 422 with field-level issues, or a request that could not be encoded
//   - KindAPI: any other non-2xx response
//   - KindNetwork: no response was received, including unreadable credential storage
//   - KindSessionExpired: the refresh token was rejected and the session is over
//
// Use errors.Is with the sentinel values (ErrValidation, ErrSessionExpired, ...) to
// branch on the kind, or errors.As to inspect the full error.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies the variant of an Error.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAPI            Kind = "api"
	KindNetwork        Kind = "network"
	KindSessionExpired Kind = "session_expired"
)

// Fallback messages used when the backend does not provide one.
const (
	MessageValidation     = "validation failed"
	MessageRequestFailed  = "request failed"
	MessageNetwork        = "network error: server unreachable"
	MessageSessionExpired = "session expired, please log in again"
	MessageInvalidRequest = "invalid request"
	MessageInvalidBody    = "invalid response body"
	MessageStorage        = "credential storage unavailable"
)

// Sentinels for errors.Is comparisons against an *Error of the same kind.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAPI            = &Error{Kind: KindAPI}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrSessionExpired = &Error{Kind: KindSessionExpired}
)

// Issue is a single field-level validation problem as reported by the backend.
type Issue struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type,omitempty"`
}

// Path renders the location of the issue as a dotted path, e.g. "body.amount".
func (i Issue) Path() string {
	parts := make([]string, 0, len(i.Loc))
	for _, l := range i.Loc {
		parts = append(parts, fmt.Sprint(l))
	}
	return strings.Join(parts, ".")
}

// Error is the normalized error returned by the API client.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code, zero for network errors.
	Status int
	// Details is a human-readable summary of Issues for validation errors.
	Details string
	Issues  []Issue
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. Sentinels carry only a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// responseBody is the subset of the backend error payload we understand.
type responseBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// FromResponse converts a non-2xx response into an *Error.
// A 422 carrying a detail array becomes a validation error; anything else becomes an
// API error using the detail string (or message field) when present.
func FromResponse(status int, body []byte) *Error {
	var payload responseBody
	_ = json.Unmarshal(body, &payload)

	if status == http.StatusUnprocessableEntity {
		var issues []Issue
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &issues) == nil && len(issues) > 0 {
			return &Error{
				Kind:    KindValidation,
				Message: MessageValidation,
				Status:  status,
				Details: summarize(issues),
				Issues:  issues,
			}
		}
	}

	message := MessageRequestFailed
	var detail string
	if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
		message = detail
	} else if payload.Message != "" {
		message = payload.Message
	}

	return &Error{
		Kind:    KindAPI,
		Message: message,
		Status:  status,
	}
}

// Network wraps a transport failure where no response was received.
func Network(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: MessageNetwork,
		Err:     err,
	}
}

// InvalidRequest wraps a request that could not be built or encoded. Nothing was sent.
func InvalidRequest(err error) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: MessageInvalidRequest,
		Err:     err,
	}
}

// InvalidResponse wraps a successful response whose body could not be decoded.
func InvalidResponse(status int, err error) *Error {
	return &Error{
		Kind:    KindAPI,
		Message: MessageInvalidBody,
		Status:  status,
		Err:     err,
	}
}

// CredentialStore wraps a failure to read stored credentials. The request was not sent.
func CredentialStore(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: MessageStorage,
		Err:     err,
	}
}

// SessionExpired wraps a failed refresh attempt.
func SessionExpired(err error) *Error {
	return &Error{
		Kind:    KindSessionExpired,
		Message: MessageSessionExpired,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Normalize returns err as an *Error, wrapping unknown errors as network failures.
// Nil stays nil.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Network(err)
}

func summarize(issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		if path := issue.Path(); path != "" {
			parts = append(parts, path+"."+issue.Msg)
			continue
		}
		parts = append(parts, issue.Msg)
	}
	return strings.Join(parts, "; ")
}
