package logging

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewOperationErrorNilStaysNil(t *testing.T) {
	if err := NewOperationError("op", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorMessageAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("apiclient.register_lesion", "req-1", base)

	if got, want := err.Error(), "apiclient.register_lesion (request_id=req-1): boom"; got != want {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "apiclient.register_lesion" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestOperationErrorWithoutRequestID(t *testing.T) {
	err := NewOperationError("config.load", "", errors.New("missing"))
	if got := err.Error(); got != "config.load: missing" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestRouteErrorMessage(t *testing.T) {
	err := NewRouteError("apiclient.register_lesion", "POST /cadastrar-lesao", "req-9", errors.New("status 500"))
	if got, want := err.Error(), "apiclient.register_lesion POST /cadastrar-lesao (request_id=req-9): status 500"; got != want {
		t.Fatalf("unexpected message: %q", got)
	}
	if err := NewRouteError("op", "GET /x", "req", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorMarshalLogObject(t *testing.T) {
	opErr := &OperationError{Operation: "apiclient.upload_consent_term", Route: "POST /upload-termo", Err: errors.New("refused")}

	enc := zapcore.NewMapObjectEncoder()
	if err := opErr.MarshalLogObject(enc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if enc.Fields["operation"] != "apiclient.upload_consent_term" || enc.Fields["route"] != "POST /upload-termo" || enc.Fields["cause"] != "refused" {
		t.Fatalf("unexpected fields: %#v", enc.Fields)
	}
	if _, ok := enc.Fields["request_id"]; ok {
		t.Fatal("empty request id should be omitted")
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("nonsense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("debug should be disabled at the fallback level")
	}
}
