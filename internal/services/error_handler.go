package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/logger"
	"github.com/betanery/easy-doc-signer-sub000/internal/models"
	"github.com/betanery/easy-doc-signer-sub000/internal/repositories"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeAuth          ErrorType = "authentication"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeQuota         ErrorType = "quota"
	ErrorTypeProvider      ErrorType = "provider"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeCache         ErrorType = "cache"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeInternal      ErrorType = "internal"
)

// ErrorSeverity represents error severity levels
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ClassifiedError represents an error with classification information
type ClassifiedError struct {
	OriginalError error
	Type          ErrorType
	Severity      ErrorSeverity
	StatusCode    int
	Code          string
	Message       string
	Details       interface{}
	Context       map[string]interface{}
	Timestamp     time.Time
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Severity, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.OriginalError
}

// CacheError is a cache store failure on a path where the cache is the only
// source for the response
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("document cache %s failed: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// ErrorHandler maps service errors to the HTTP error taxonomy and logs them
type ErrorHandler struct {
	logger *logger.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *logger.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ClassifyError classifies an error by its type. Unknown errors are internal.
func (eh *ErrorHandler) ClassifyError(err error, context map[string]interface{}) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	classified = &ClassifiedError{
		OriginalError: err,
		Context:       context,
		Timestamp:     time.Now(),
	}

	eh.classifyByType(classified)
	eh.classifyBySeverity(classified)

	return classified
}

func (eh *ErrorHandler) classifyByType(ce *ClassifiedError) {
	err := ce.OriginalError

	var (
		validationErr *models.ValidationError
		quotaErr      *QuotaError
		providerErr   *ProviderError
		cacheErr      *CacheError
	)

	switch {
	case errors.Is(err, ErrProviderNotConfigured):
		ce.Type = ErrorTypeConfiguration
		ce.StatusCode = http.StatusInternalServerError
		ce.Message = ErrProviderNotConfigured.Error()

	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrMissingToken):
		ce.Type = ErrorTypeAuth
		ce.StatusCode = http.StatusUnauthorized
		ce.Message = "Unauthorized"

	case errors.Is(err, ErrNoTenant), errors.Is(err, ErrProfileNotFound):
		ce.Type = ErrorTypeAuthorization
		ce.StatusCode = http.StatusForbidden
		ce.Message = err.Error()

	case errors.As(err, &validationErr):
		ce.Type = ErrorTypeValidation
		ce.StatusCode = http.StatusBadRequest
		ce.Message = "Validation failed"
		ce.Details = validationErr.Fields

	case errors.As(err, &quotaErr):
		ce.Type = ErrorTypeQuota
		ce.StatusCode = http.StatusForbidden
		ce.Code = string(quotaErr.Reason())
		ce.Message = "Document limit reached for the current plan"
		ce.Details = quotaErr.Usage

	case errors.Is(err, ErrSeatLimitReached):
		ce.Type = ErrorTypeQuota
		ce.StatusCode = http.StatusForbidden
		ce.Code = "seat_limit_reached"
		ce.Message = "Member limit reached for the current plan"

	case errors.As(err, &providerErr):
		ce.Type = ErrorTypeProvider
		ce.StatusCode = providerErr.StatusCode
		ce.Message = "Signing provider request failed"
		ce.Details = providerDetails(providerErr.Body)

	case errors.Is(err, ErrProviderTimeout):
		ce.Type = ErrorTypeTimeout
		ce.StatusCode = http.StatusGatewayTimeout
		ce.Message = "Signing provider timed out"

	case errors.Is(err, ErrProviderUnavailable):
		ce.Type = ErrorTypeProvider
		ce.StatusCode = http.StatusBadGateway
		ce.Message = "Signing provider unavailable"

	case errors.As(err, &cacheErr):
		ce.Type = ErrorTypeCache
		ce.StatusCode = http.StatusInternalServerError
		ce.Message = "Document cache unavailable"

	case errors.Is(err, repositories.ErrNotFound):
		ce.Type = ErrorTypeNotFound
		ce.StatusCode = http.StatusNotFound
		ce.Message = "Resource not found"

	case errors.Is(err, ErrFolderCycle), errors.Is(err, ErrInvalidPlan):
		ce.Type = ErrorTypeValidation
		ce.StatusCode = http.StatusBadRequest
		ce.Message = err.Error()

	case errors.Is(err, ErrIdempotencyInFlight):
		ce.Type = ErrorTypeConflict
		ce.StatusCode = http.StatusConflict
		ce.Code = "idempotency_key_in_use"
		ce.Message = err.Error()

	case errors.Is(err, ErrMemberOfAnotherTenant):
		ce.Type = ErrorTypeConflict
		ce.StatusCode = http.StatusConflict
		ce.Message = err.Error()

	default:
		ce.Type = ErrorTypeInternal
		ce.StatusCode = http.StatusInternalServerError
		ce.Message = "Internal server error"
	}
}

// providerDetails returns the provider's raw error body, decoded when it is JSON
func providerDetails(body string) interface{} {
	if body == "" {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(body), &decoded); err == nil {
		return decoded
	}
	return body
}

func (eh *ErrorHandler) classifyBySeverity(ce *ClassifiedError) {
	switch ce.Type {
	case ErrorTypeValidation, ErrorTypeQuota, ErrorTypeNotFound, ErrorTypeConflict:
		ce.Severity = SeverityLow
	case ErrorTypeAuth, ErrorTypeAuthorization:
		ce.Severity = SeverityMedium
	case ErrorTypeConfiguration:
		ce.Severity = SeverityCritical
	case ErrorTypeProvider, ErrorTypeTimeout:
		if ce.StatusCode >= 500 {
			ce.Severity = SeverityHigh
		} else {
			ce.Severity = SeverityMedium
		}
	default:
		ce.Severity = SeverityHigh
	}
}

// HandleError classifies and logs an error
func (eh *ErrorHandler) HandleError(err error, context map[string]interface{}) *ClassifiedError {
	if err == nil {
		return nil
	}

	classified := eh.ClassifyError(err, context)
	eh.logError(classified)
	return classified
}

func (eh *ErrorHandler) logError(err *ClassifiedError) {
	logEntry := eh.logger.WithError(err.OriginalError).
		WithField("error_type", string(err.Type)).
		WithField("severity", string(err.Severity)).
		WithField("status_code", err.StatusCode)

	for key, value := range err.Context {
		logEntry = logEntry.WithField(key, value)
	}

	switch err.Severity {
	case SeverityLow:
		logEntry.Info(err.Message)
	case SeverityMedium:
		logEntry.Warn(err.Message)
	default:
		logEntry.Error(err.Message)
	}
}
