package record

import (
	"errors"
	"testing"

	"reld/execctx"
)

func TestTranslateErrorMapsKnownCodes(t *testing.T) {
	cases := []struct {
		code BackendCode
		want execctx.ErrorKind
	}{
		{CodeNoMemory, execctx.ErrNoMemory},
		{CodeInvalidArgument, execctx.ErrInvalidArgument},
		{CodeResourceNotFound, execctx.ErrResourceNotFound},
		{CodeKeyViolation, execctx.ErrKeyViolation},
		{CodeElementExists, execctx.ErrElementExists},
		{CodeNotFound, execctx.ErrNotFound},
		{CodeConcurrency, execctx.ErrConcurrency},
		{CodeDeadlock, execctx.ErrDeadlock},
		{CodeRunRecovery, execctx.ErrRunRecovery},
		{CodeDataCorrupted, execctx.ErrDataCorrupted},
	}
	for _, c := range cases {
		got := TranslateError(NewError(c.code, "x"))
		if got != c.want {
			t.Fatalf("code %v: expected %v, got %v", c.code, c.want, got)
		}
	}
}

func TestTranslateErrorFallsBackToSystemForUncodedError(t *testing.T) {
	if got := TranslateError(errors.New("boom")); got != execctx.ErrSystem {
		t.Fatalf("expected system, got %v", got)
	}
}

func TestTranslateErrorWrappedCodedErrorStillResolves(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), NewError(CodeDeadlock, "lock cycle"))
	if got := TranslateError(wrapped); got != execctx.ErrDeadlock {
		t.Fatalf("expected deadlock through errors.Join, got %v", got)
	}
}
