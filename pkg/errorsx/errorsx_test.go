package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonClassifyTransport)
	if Reason(err) != ReasonClassifyTransport {
		t.Fatalf("expected reason %s, got %s", ReasonClassifyTransport, Reason(err))
	}
	if !HasReason(err, ReasonClassifyTransport) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonClassifyShape)
	second := Wrap(fmt.Errorf("classify: %w", first), ReasonClassifyParse)
	if Reason(second) != ReasonClassifyShape {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestErrorfKeepsCause(t *testing.T) {
	err := Errorf(ReasonCaptureFailed, "capture: %w", assertErr{})
	if !errors.As(err, new(assertErr)) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if Reason(err) != ReasonCaptureFailed {
		t.Fatalf("expected capture reason, got %s", Reason(err))
	}
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown reason for nil")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
