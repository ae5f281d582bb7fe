// Package errors provides standardized error handling for BPMN workflow integration.
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
	ErrCodeRuleSetLookupFailed       ErrorCode = "RULESET_LOOKUP_FAILED"
	ErrCodeApplicationNotFound       ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeApplicationLoadFailed     ErrorCode = "APPLICATION_LOAD_FAILED"
	ErrCodeChecklistPersistFailed    ErrorCode = "CHECKLIST_PERSIST_FAILED"
	ErrCodeChecklistGenerationFailed ErrorCode = "CHECKLIST_GENERATION_FAILED"
	ErrCodeUploadsLoadFailed         ErrorCode = "UPLOADS_LOAD_FAILED"

	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMResponseInvalid  ErrorCode = "LLM_RESPONSE_INVALID"
	ErrCodeLLMCompletionFailed ErrorCode = "LLM_COMPLETION_FAILED"

	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewRuleSetLookupFailedError is retryable; the rule store is usually back soon.
func NewRuleSetLookupFailedError(countryCode, visaType string, err error) *StandardError {
	return newError(ErrCodeRuleSetLookupFailed,
		fmt.Sprintf("Rule set lookup failed for %s/%s", countryCode, visaType), err, true)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   applicationID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewApplicationLoadFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeApplicationLoadFailed, "Failed to load application", err, true).
		WithMetadata("applicationId", applicationID)
}

// NewChecklistPersistFailedError marks a store write failure. The caller sees
// it as "try again later".
func NewChecklistPersistFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeChecklistPersistFailed, "Failed to persist document checklist", err, true).
		WithMetadata("applicationId", applicationID)
}

func NewChecklistGenerationFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeChecklistGenerationFailed, "Document checklist generation failed", err, true).
		WithMetadata("applicationId", applicationID)
}

func NewUploadsLoadFailedError(applicationID string, err error) *StandardError {
	return newError(ErrCodeUploadsLoadFailed, "Failed to load uploaded documents", err, true).
		WithMetadata("applicationId", applicationID)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM request timed out", err, true)
}

func NewLLMResponseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMResponseInvalid,
		Message:   "LLM response failed validation",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewLLMCompletionFailedError(err error) *StandardError {
	return newError(ErrCodeLLMCompletionFailed, "LLM completion failed", err, false)
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeRuleSetLookupFailed:       "RULESET_LOOKUP_FAILED",
	ErrCodeApplicationNotFound:       "APPLICATION_NOT_FOUND",
	ErrCodeApplicationLoadFailed:     "APPLICATION_LOAD_FAILED",
	ErrCodeChecklistPersistFailed:    "CHECKLIST_PERSIST_FAILED",
	ErrCodeChecklistGenerationFailed: "CHECKLIST_GENERATION_FAILED",
	ErrCodeUploadsLoadFailed:         "UPLOADS_LOAD_FAILED",
	ErrCodeLLMTimeout:                "LLM_TIMEOUT",
	ErrCodeLLMResponseInvalid:        "LLM_RESPONSE_INVALID",
	ErrCodeLLMCompletionFailed:       "LLM_COMPLETION_FAILED",
	ErrCodeInvalidInput:              "INVALID_INPUT",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeRuleSetLookupFailed,
		ErrCodeApplicationLoadFailed,
		ErrCodeChecklistPersistFailed,
		ErrCodeUploadsLoadFailed:
		return 3

	case ErrCodeChecklistGenerationFailed:
		return 2

	case ErrCodeLLMTimeout, ErrCodeLLMResponseInvalid:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a StandardError if one is in its chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "RULESET"):
		return "RULES"
	case strings.Contains(codeStr, "APPLICATION") || strings.Contains(codeStr, "UPLOADS"):
		return "APPLICATION"
	case strings.Contains(codeStr, "CHECKLIST"):
		return "CHECKLIST"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
