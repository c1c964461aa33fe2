// Package errors defines the gateway's error taxonomy.
//
// Every sentinel here maps to an HTTP status in internal/platform/httpserver
// (ErrSessionTerminated's status is chosen per call site: 403 on inbox
// ingest, 409 elsewhere); the mapping lives there, not here, so the
// domain/application layers never import net/http.
package errors

import "errors"

var (
	ErrMissingAccountHeader      = errors.New("account header is required")
	ErrMissingIdempotencyKey     = errors.New("idempotency key is required")
	ErrInvalidAuthorizationScheme = errors.New("authorization header must use the bearer scheme")
	ErrInvalidHeaderEncoding     = errors.New("header value must be valid utf-8")
	ErrEmptyHeaderValue          = errors.New("header value must not be empty")

	ErrAuthenticationKeyEmpty = errors.New("authentication key must not be empty")
	ErrEventTypeEmpty         = errors.New("event type must not be empty")
	ErrPositionIDRequired     = errors.New("position id is required for close commands")

	ErrSessionMissing     = errors.New("no session bundle for account")
	ErrInvalidSessionToken = errors.New("session token is not valid for this account")

	ErrAuthenticationFailed = errors.New("authentication key fingerprint does not match")
	ErrSessionTerminated    = errors.New("session is terminated")
	ErrSessionMismatch      = errors.New("session id does not match any session for this account")

	ErrEventNotFound = errors.New("no outbox event with the supplied identifier")

	ErrIdempotencyConflict = errors.New("idempotency key was reused with a different request")

	ErrInternal = errors.New("internal gateway error")
)
