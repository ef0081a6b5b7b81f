// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Terminal: the request never produces a decision.
	ErrCodeValidationFailed         ErrorCode = "VALIDATION_FAILED"
	ErrCodeSalonNotFound            ErrorCode = "SALON_NOT_FOUND"
	ErrCodeSettingsValidationFailed ErrorCode = "SETTINGS_VALIDATION_FAILED"
	ErrCodeUnknownOperation         ErrorCode = "UNKNOWN_OPERATION"

	// Degradable: the decision still completes on defaults/priors.
	ErrCodeUsageStoreFailed     ErrorCode = "USAGE_STORE_FAILED"
	ErrCodeAnalyticsWriteFailed ErrorCode = "ANALYTICS_WRITE_FAILED"
	ErrCodeSettingsUpdateFailed ErrorCode = "SETTINGS_UPDATE_FAILED"

	// Decision branches surfaced through error codes only when the
	// feature leaves no model or optimization to decide between.
	ErrCodeNoModelsEnabled ErrorCode = "NO_MODELS_ENABLED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
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

// ConvertToBPMNError maps a StandardError onto the BPMN error shape.
func ConvertToBPMNError(err *StandardError) *BPMNError {
	return &BPMNError{
		Code:      string(err.Code),
		Message:   err.Message,
		Details:   err.Details,
		Retryable: err.Retryable,
		Retries:   GetRetryCount(err.Code),
		ErrorVariables: map[string]interface{}{
			"errorCategory": GetErrorCategory(err.Code),
		},
	}
}

// ==========================
// 3. Caller-Facing Payload
// ==========================

// ErrorPayload is the structured error object crossing the workflow boundary
// in place of a raised exception. The process routes it to the error channel.
type ErrorPayload struct {
	Error        bool                   `json:"error"`
	ErrorCode    string                 `json:"error_code"`
	ErrorMessage string                 `json:"error_message"`
	ErrorDetails map[string]interface{} `json:"error_details,omitempty"`
	Timestamp    string                 `json:"timestamp"`
	ExecutionID  string                 `json:"execution_id"`
}

// NewErrorPayload builds the boundary payload for a StandardError.
func NewErrorPayload(err *StandardError) *ErrorPayload {
	var details map[string]interface{}
	if err.Details != "" || len(err.Metadata) > 0 {
		details = map[string]interface{}{}
		if err.Details != "" {
			details["details"] = err.Details
		}
		for k, v := range err.Metadata {
			details[k] = v
		}
	}
	return &ErrorPayload{
		Error:        true,
		ErrorCode:    string(err.Code),
		ErrorMessage: err.Message,
		ErrorDetails: details,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		ExecutionID:  uuid.NewString(),
	}
}

// ==========================
// 4. Error Constructors
// ==========================

// FieldError is one field-level violation inside a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationError creates a non-retryable input validation error carrying
// field-level messages in its metadata.
func NewValidationError(details string, fields []FieldError) *StandardError {
	md := map[string]interface{}{}
	if len(fields) > 0 {
		md["fields"] = fields
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request input validation failed",
		Details:   details,
		Retryable: false,
		Metadata:  md,
		Timestamp: time.Now().UTC(),
	}
}

// NewSettingsValidationError creates a non-retryable settings validation error.
func NewSettingsValidationError(fields []FieldError) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettingsValidationFailed,
		Message:   "Service window settings validation failed",
		Retryable: false,
		Metadata:  map[string]interface{}{"fields": fields},
		Timestamp: time.Now().UTC(),
	}
}

// NewSalonNotFoundError creates a non-retryable missing-configuration error.
func NewSalonNotFoundError(salonID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSalonNotFound,
		Message:   "Salon settings not found",
		Details:   fmt.Sprintf("salonId: %s", salonID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoModelsEnabledError reports that the salon has every AI model disabled.
func NewNoModelsEnabledError(salonID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoModelsEnabled,
		Message:   "No AI models are enabled for this salon",
		Details:   fmt.Sprintf("salonId: %s", salonID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUsageStoreError creates a retryable usage store read/write error.
// Decision paths catch this internally and downgrade to priors/defaults.
func NewUsageStoreError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUsageStoreFailed,
		Message:   "Usage store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalyticsWriteFailedError reports a swallowed analytics sink failure.
func NewAnalyticsWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalyticsWriteFailed,
		Message:   "Decision analytics write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSettingsUpdateFailedError creates a retryable settings persistence error.
func NewSettingsUpdateFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSettingsUpdateFailed,
		Message:   "Service window settings update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownOperationError creates a non-retryable caller misuse error.
func NewUnknownOperationError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownOperation,
		Message:   "Unknown operation or request type",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 5. Retry / Category Tables
// ==========================

// GetRetryCount returns how many engine-level retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUsageStoreFailed, ErrCodeSettingsUpdateFailed, ErrCodeAnalyticsWriteFailed:
		return 3
	default:
		return 0
	}
}

// GetErrorCategory buckets codes for logging and dashboards.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed, ErrCodeSettingsValidationFailed:
		return "validation"
	case ErrCodeSalonNotFound:
		return "not_found"
	case ErrCodeNoModelsEnabled:
		return "feature_disabled"
	case ErrCodeUsageStoreFailed, ErrCodeSettingsUpdateFailed, ErrCodeAnalyticsWriteFailed:
		return "store"
	case ErrCodeUnknownOperation:
		return "misuse"
	default:
		return "internal"
	}
}
