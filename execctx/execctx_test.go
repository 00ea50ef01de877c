package execctx

import "testing"

func TestRaiseReplacesActiveError(t *testing.T) {
	ctx := NewContext()
	ctx.RaiseKind(ErrInvalidArgument, "first")
	ctx.RaiseKind(ErrNotFound, "second")
	if ctx.Error().Kind != ErrNotFound {
		t.Fatalf("second raise should replace the first, got %v", ctx.Error().Kind)
	}
}

func TestRetryableFlagSetOnDeadlock(t *testing.T) {
	ctx := NewContext()
	ctx.RaiseKind(ErrDeadlock, "cycle detected")
	if !ctx.Retryable() {
		t.Fatalf("deadlock errors must set the retryable flag")
	}
}

func TestNonRetryableKindLeavesFlagClear(t *testing.T) {
	ctx := NewContext()
	ctx.RaiseKind(ErrInvalidArgument, "bad arg")
	if ctx.Retryable() {
		t.Fatalf("invalid_argument must not be retryable")
	}
}

func TestClearDropsActiveError(t *testing.T) {
	ctx := NewContext()
	ctx.RaiseKind(ErrNotFound, "eof")
	ctx.Clear()
	if ctx.Active() {
		t.Fatalf("Clear must deactivate the error slot")
	}
	if ctx.Error() != nil {
		t.Fatalf("Error() after Clear must be nil")
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	ctx := NewContext()
	ctx.SetProperty("user", "alice")
	v, ok := ctx.Property("user")
	if !ok || v != "alice" {
		t.Fatalf("property round-trip failed: %v, %v", v, ok)
	}
}
