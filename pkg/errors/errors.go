// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for SkillsLike.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode classifies SkillsLike errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeConfig indicates a manifest or runtime configuration problem,
	// e.g. a missing runtime-kind-required field at execution time.
	CodeConfig ErrorCode = "CONFIG_ERROR"

	// CodeToolFailure indicates a skill execution failed in its backend.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeTimeout indicates an operation exceeded its configured bound.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeLLMError indicates a model provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// AgentError is a typed error with attached context for observability.
// It implements the error interface and unwraps to its cause.
type AgentError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int
}

// New creates a new AgentError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AgentError {
	return &AgentError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
func (e *AgentError) WithRecoverable(recoverable bool) *AgentError {
	e.Recoverable = recoverable
	return e
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         fmt.Sprintf("%v", e.Err),
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// AsAgentError attempts to convert an error to an AgentError,
// wrapping unknown errors as internal.
func AsAgentError(err error) *AgentError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AgentError); ok {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// HasCode reports whether err is an AgentError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	ae, ok := err.(*AgentError)
	return ok && ae.Code == code
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeConfig:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
