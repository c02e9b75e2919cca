// Package errors provides the advisor's error taxonomy: catalog data errors,
// classification and composition failures, and session state violations.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Data errors: fatal at load time.
	ErrCodeCatalogLoadFailed    ErrorCode = "CATALOG_LOAD_FAILED"
	ErrCodeCatalogSchemaInvalid ErrorCode = "CATALOG_SCHEMA_INVALID"
	ErrCodeCatalogEmpty         ErrorCode = "CATALOG_EMPTY"

	// Classification and composition errors: recovered per turn.
	ErrCodeIntentClassificationFailed ErrorCode = "INTENT_CLASSIFICATION_FAILED"
	ErrCodeIntentAPITimeout           ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodeCompositionFailed          ErrorCode = "COMPOSITION_FAILED"
	ErrCodeLLMTimeout                 ErrorCode = "LLM_TIMEOUT"

	// Session errors.
	ErrCodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStateInvalid ErrorCode = "SESSION_STATE_INVALID"
	ErrCodePersonaInvalid      ErrorCode = "PERSONA_INVALID"
	ErrCodeTurnInFlight        ErrorCode = "TURN_IN_FLIGHT"

	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ToErrorVariables returns a map suitable for Camunda job error variables.
func (e *StandardError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":     string(e.Code),
		"errorMessage":  e.Message,
		"errorDetails":  e.Details,
		"errorCategory": GetErrorCategory(e.Code),
		"retryable":     e.Retryable,
		"timestamp":     e.Timestamp.Format(time.RFC3339),
	}
	for k, v := range e.Metadata {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCatalogLoadFailedError wraps a failure of the catalog source itself.
func NewCatalogLoadFailedError(source string, err error) *StandardError {
	return newError(ErrCodeCatalogLoadFailed, "Catalog snapshot could not be loaded",
		fmt.Sprintf("source: %s, error: %v", source, err), true, err)
}

// NewCatalogSchemaInvalidError reports missing required columns.
func NewCatalogSchemaInvalidError(missing []string) *StandardError {
	e := newError(ErrCodeCatalogSchemaInvalid, "Catalog snapshot is missing required columns",
		fmt.Sprintf("missing: %s", strings.Join(missing, ", ")), false, nil)
	e.Metadata = map[string]interface{}{"missingColumns": missing}
	return e
}

// NewCatalogEmptyError reports a source that returned no rows at all.
func NewCatalogEmptyError(source string) *StandardError {
	return newError(ErrCodeCatalogEmpty, "Catalog snapshot is empty",
		fmt.Sprintf("source: %s", source), false, nil)
}

func NewIntentClassificationFailedError(err error) *StandardError {
	return newError(ErrCodeIntentClassificationFailed, "Intent classification failed", errDetails(err), true, err)
}

func NewIntentAPITimeoutError(err error) *StandardError {
	return newError(ErrCodeIntentAPITimeout, "Intent classification timed out", errDetails(err), true, err)
}

func NewCompositionFailedError(err error) *StandardError {
	return newError(ErrCodeCompositionFailed, "Response composition failed", errDetails(err), true, err)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model call timed out", errDetails(err), true, err)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Session not found",
		fmt.Sprintf("sessionId: %s", sessionID), false, nil)
}

func NewSessionStateInvalidError(details string) *StandardError {
	return newError(ErrCodeSessionStateInvalid, "Operation not allowed in the current session state", details, false, nil)
}

func NewPersonaInvalidError(err error) *StandardError {
	return newError(ErrCodePersonaInvalid, "Persona is invalid", errDetails(err), false, err)
}

func NewTurnInFlightError(sessionID string) *StandardError {
	return newError(ErrCodeTurnInFlight, "A turn is already being processed",
		fmt.Sprintf("sessionId: %s", sessionID), false, nil)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", errDetails(err), false, err)
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code of the first StandardError in the chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// GetRetryCount returns the recommended retry count for job workers.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogLoadFailed,
		ErrCodeIntentClassificationFailed,
		ErrCodeCompositionFailed:
		return 3

	case ErrCodeIntentAPITimeout:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory maps a code onto the error taxonomy.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CATALOG"):
		return "DATA"
	case strings.HasPrefix(codeStr, "INTENT"):
		return "CLASSIFICATION"
	case strings.Contains(codeStr, "COMPOSITION") || strings.Contains(codeStr, "LLM"):
		return "COMPOSITION"
	case strings.HasPrefix(codeStr, "SESSION") || strings.HasPrefix(codeStr, "TURN") || strings.HasPrefix(codeStr, "PERSONA"):
		return "SESSION"
	default:
		return "OTHER"
	}
}
