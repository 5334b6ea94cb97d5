package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so handlers can map them to
// transport codes without inspecting messages.
type ErrorKind string

const (
	// KindAccessDenied means the actor may not perform the operation.
	KindAccessDenied ErrorKind = "access_denied"
	// KindInvalidState means the entity's lifecycle forbids the transition.
	KindInvalidState ErrorKind = "invalid_state"
	// KindConflict means a concurrent actor won a race for the same resource.
	KindConflict ErrorKind = "conflict"
	// KindExhausted means the course has no remaining hour balance.
	KindExhausted ErrorKind = "exhausted"
	// KindNotFound means the referenced entity does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindValidation means the request payload failed validation.
	KindValidation ErrorKind = "validation"
	// KindUpstream means a collaborator (payments, identity) is not ready.
	KindUpstream ErrorKind = "upstream"
)

// ServiceError carries a kind alongside the message.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewAccessDeniedError(message string) *ServiceError {
	return &ServiceError{Kind: KindAccessDenied, Message: message}
}

func NewInvalidStateError(message string) *ServiceError {
	return &ServiceError{Kind: KindInvalidState, Message: message}
}

func NewConflictError(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindConflict, Message: message, Err: err}
}

func NewExhaustedError(message string) *ServiceError {
	return &ServiceError{Kind: KindExhausted, Message: message}
}

func NewNotFoundError(entity string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", entity)}
}

func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: message, Err: err}
}

func NewUpstreamError(message string) *ServiceError {
	return &ServiceError{Kind: KindUpstream, Message: message}
}

// KindOf extracts the error kind, defaulting to upstream for unknown errors.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstream
}

func IsKind(err error, kind ErrorKind) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == kind
}
