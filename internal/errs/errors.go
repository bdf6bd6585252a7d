package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// OrchestratorError is the generic failure raised while orchestrating a
// request. More specific error types below should be preferred where the
// failing layer is known.
type OrchestratorError struct {
	Message string
}

func (e *OrchestratorError) Error() string {
	return e.Message
}

func NewOrchestratorError(message string) *OrchestratorError {
	return &OrchestratorError{Message: message}
}

// ConfigurationError indicates invalid or missing configuration, detected
// either at startup or when an endpoint references configuration that does
// not exist.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{Message: message}
}

// ValidationError indicates a request that failed validation before any
// source was executed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// ResourceNotFoundError indicates a missing resource such as an unknown
// endpoint, execution or model.
type ResourceNotFoundError struct {
	Message string
}

func (e *ResourceNotFoundError) Error() string {
	return e.Message
}

func NewResourceNotFoundError(message string) *ResourceNotFoundError {
	return &ResourceNotFoundError{Message: message}
}

// AuthorizationError indicates the caller is not allowed to perform the
// requested operation.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func NewAuthorizationError(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

// SourceError is implemented by every error raised from a data source
// backend. Callers can use errors.As to match the whole family without
// knowing the concrete backend type.
type SourceError interface {
	error
	Source() (sourceType, sourceName string)
}

// DataSourceError carries the type and name of the source that failed so
// partial-failure responses can report which backend broke.
type DataSourceError struct {
	SourceType string
	SourceName string
	Message    string
	Err        error
}

func (e *DataSourceError) Error() string {
	if e.SourceName != "" {
		return fmt.Sprintf("%s source '%s': %s", e.SourceType, e.SourceName, e.Message)
	}
	return fmt.Sprintf("%s source: %s", e.SourceType, e.Message)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

func (e *DataSourceError) Source() (string, string) {
	return e.SourceType, e.SourceName
}

// DatabaseError is raised by relational store backends.
type DatabaseError struct {
	DataSourceError
}

func NewDatabaseError(sourceName, message string, cause error) *DatabaseError {
	return &DatabaseError{DataSourceError{SourceType: "database", SourceName: sourceName, Message: message, Err: cause}}
}

// ApiError is raised by REST backends and carries the upstream status code.
type ApiError struct {
	DataSourceError
	StatusCode int
}

func NewApiError(sourceName, message string, statusCode int, cause error) *ApiError {
	return &ApiError{
		DataSourceError: DataSourceError{SourceType: "api", SourceName: sourceName, Message: message, Err: cause},
		StatusCode:      statusCode,
	}
}

// FeatureStoreError is raised by feature store backends.
type FeatureStoreError struct {
	DataSourceError
}

func NewFeatureStoreError(sourceName, message string, cause error) *FeatureStoreError {
	return &FeatureStoreError{DataSourceError{SourceType: "feast", SourceName: sourceName, Message: message, Err: cause}}
}

// ModelError is raised by model backends, both at inference time and while
// managing the model runtime lifecycle.
type ModelError struct {
	DataSourceError
}

func NewModelError(sourceName, message string, cause error) *ModelError {
	return &ModelError{DataSourceError{SourceType: "ml", SourceName: sourceName, Message: message, Err: cause}}
}

// HTTPStatus maps an orchestration error to the HTTP status code the
// transport layer should respond with.
func HTTPStatus(err error) int {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity
	}
	var notFoundErr *ResourceNotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusNotFound
	}
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return http.StatusForbidden
	}
	var sourceErr SourceError
	if errors.As(err, &sourceErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
