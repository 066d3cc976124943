package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestNewCarriesCodeAndCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := New(CodeToolFailure, "skill 'web-search' failed", cause)

	if err.Code != CodeToolFailure {
		t.Errorf("expected code %s, got %s", CodeToolFailure, err.Code)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	want := "[TOOL_FAILURE] skill 'web-search' failed: connection refused"
	if err.Error() != want {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestWithContextChaining(t *testing.T) {
	err := New(CodeTimeout, "skill timed out", nil).
		WithContext("skill", "excel-skill").
		WithContext("timeout", "1s").
		WithRecoverable(true)

	if err.Context["skill"] != "excel-skill" {
		t.Errorf("missing context value: %v", err.Context)
	}
	if !err.Recoverable {
		t.Error("expected recoverable")
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeConfig, http.StatusUnprocessableEntity},
		{CodeInternal, http.StatusInternalServerError},
		{CodeToolFailure, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := New(tc.code, "x", nil).StatusCode; got != tc.want {
			t.Errorf("code %s: got status %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestAsAgentError(t *testing.T) {
	plain := stderrors.New("boom")
	wrapped := AsAgentError(plain)
	if wrapped.Code != CodeInternal {
		t.Errorf("expected internal wrap, got %s", wrapped.Code)
	}

	typed := New(CodeNotFound, "missing", nil)
	if AsAgentError(typed) != typed {
		t.Error("expected typed error returned as-is")
	}
	if AsAgentError(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeTimeout, "deadline", nil)
	if !HasCode(err, CodeTimeout) {
		t.Error("expected HasCode to match")
	}
	if HasCode(err, CodeNotFound) {
		t.Error("expected HasCode mismatch")
	}
	if HasCode(stderrors.New("plain"), CodeTimeout) {
		t.Error("expected false for plain error")
	}
}
