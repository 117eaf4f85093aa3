package ozoerr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeTimeout, "deadline exceeded")
	expected := "[timeout] deadline exceeded"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}

	withOp := err.WithOp("conn.Request")
	expected = "conn.Request: [timeout] deadline exceeded"
	if withOp.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, withOp.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Wrap(cause, CodeCancelFailed, "native cancel failed")
	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be found in the chain")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("request: %w", New(CodePoolQueueOverflow, "queue full"))
	if !errors.Is(err, New(CodePoolQueueOverflow, "")) {
		t.Error("Expected code-based match")
	}
	if errors.Is(err, New(CodePoolClosed, "")) {
		t.Error("Did not expect a match for a different code")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeTimeout, "x")); got != CodeTimeout {
		t.Errorf("Expected %q, got %q", CodeTimeout, got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("Expected empty code, got %q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("Expected empty code for nil, got %q", got)
	}
}

func TestFromContext(t *testing.T) {
	if !IsTimeout(FromContext(context.DeadlineExceeded)) {
		t.Error("Expected deadline expiry to map to timeout")
	}
	if !IsAborted(FromContext(context.Canceled)) {
		t.Error("Expected cancellation to map to operation_aborted")
	}
}
