package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// OperationError ties a failure to the operation that produced it. Route is
// the backend call ("POST /cadastrar-lesao") when the operation made one.
type OperationError struct {
	Operation string
	Route     string
	RequestID string
	Err       error
}

// Error renders "operation [route] (request_id=...): cause", leaving out
// the parts that are empty.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(e.Operation)
	if e.Route != "" {
		b.WriteString(" ")
		b.WriteString(e.Route)
	}
	if e.RequestID != "" {
		b.WriteString(" (request_id=")
		b.WriteString(e.RequestID)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MarshalLogObject lets a failure be logged as one structured field with
// zap.Object.
func (e *OperationError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("operation", e.Operation)
	if e.Route != "" {
		enc.AddString("route", e.Route)
	}
	if e.RequestID != "" {
		enc.AddString("request_id", e.RequestID)
	}
	if e.Err != nil {
		enc.AddString("cause", e.Err.Error())
	}
	return nil
}

// NewOperationError wraps err with operation metadata. A nil err stays nil.
func NewOperationError(operation, requestID string, err error) error {
	return NewRouteError(operation, "", requestID, err)
}

// NewRouteError is NewOperationError for operations that called a backend
// route.
func NewRouteError(operation, route, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, Route: route, RequestID: requestID, Err: err}
}
