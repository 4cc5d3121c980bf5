// Package errors provides custom error types for the brightsync system.
// Errors are split into fatal errors, which abort a single store's run,
// and recoverable errors, which are logged and worked around at the call site.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are aliases for the standard library functions so callers need
// only one errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the brightsync system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the remote API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrRemoteUnavailable indicates that a remote API is temporarily unavailable
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrConfigNotFound indicates that a store configuration or the vendor map is missing
	ErrConfigNotFound = errors.New("config not found")

	// ErrListFetchFailed indicates that a catalog listing request failed
	ErrListFetchFailed = errors.New("list fetch failed")

	// ErrDetailFetchFailed indicates that a single product detail request failed
	ErrDetailFetchFailed = errors.New("detail fetch failed")

	// ErrCorruptState indicates that persisted state could not be decoded
	ErrCorruptState = errors.New("corrupt persisted state")

	// ErrUploadFailed indicates that an artifact could not be written to the document store
	ErrUploadFailed = errors.New("upload failed")

	// ErrRunInProgress indicates that another run holds the store's lock
	ErrRunInProgress = errors.New("run in progress")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// APIError represents an error response from a remote API
type APIError struct {
	Service    string // "storefront", "fulfillment"
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Service, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrRemoteUnavailable
	}
	return false
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return IsRateLimited(e) || IsRemoteUnavailable(e)
}

// NewAPIError creates a new APIError
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigNotFoundError is returned when a configuration document is absent.
// It is fatal for the affected store.
type ConfigNotFoundError struct {
	Store string
	Path  string
	Err   error
}

// Error implements the error interface
func (e *ConfigNotFoundError) Error() string {
	if e.Store != "" {
		return fmt.Sprintf("configuration for store %s not found at %s", e.Store, e.Path)
	}
	return fmt.Sprintf("configuration not found at %s", e.Path)
}

// Unwrap implements errors.Unwrap
func (e *ConfigNotFoundError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigNotFoundError) Is(target error) bool {
	return target == ErrConfigNotFound
}

// NewConfigNotFoundError creates a new ConfigNotFoundError
func NewConfigNotFoundError(store, path string, err error) *ConfigNotFoundError {
	return &ConfigNotFoundError{Store: store, Path: path, Err: err}
}

// ListFetchError is returned when a paginated catalog listing fails.
// It is fatal for the affected store.
type ListFetchError struct {
	Store    string
	Resource string // "products", "inventories"
	Page     int
	Err      error
}

// Error implements the error interface
func (e *ListFetchError) Error() string {
	return fmt.Sprintf("failed to list %s for store %s (page %d): %v", e.Resource, e.Store, e.Page, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ListFetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ListFetchError) Is(target error) bool {
	return target == ErrListFetchFailed
}

// NewListFetchError creates a new ListFetchError
func NewListFetchError(store, resource string, page int, err error) *ListFetchError {
	return &ListFetchError{Store: store, Resource: resource, Page: page, Err: err}
}

// DetailFetchError is returned when a single product's detail cannot be read.
// Callers skip the product and leave its cache entry untouched.
type DetailFetchError struct {
	ProductID string
	Resource  string // "product", "options", "sub_options", "images"
	Err       error
}

// Error implements the error interface
func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s for product %s: %v", e.Resource, e.ProductID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *DetailFetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *DetailFetchError) Is(target error) bool {
	return target == ErrDetailFetchFailed
}

// NewDetailFetchError creates a new DetailFetchError
func NewDetailFetchError(productID, resource string, err error) *DetailFetchError {
	return &DetailFetchError{ProductID: productID, Resource: resource, Err: err}
}

// CorruptStateError is returned when a persisted document exists but cannot be decoded.
// Callers treat the state as empty.
type CorruptStateError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %v", e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CorruptStateError) Is(target error) bool {
	return target == ErrCorruptState
}

// NewCorruptStateError creates a new CorruptStateError
func NewCorruptStateError(path string, err error) *CorruptStateError {
	return &CorruptStateError{Path: path, Err: err}
}

// UploadError is returned when an artifact cannot be written.
type UploadError struct {
	Path string
	Err  error
}

// Error implements the error interface
func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *UploadError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

// NewUploadError creates a new UploadError
func NewUploadError(path string, err error) *UploadError {
	return &UploadError{Path: path, Err: err}
}

// LockError is returned when a store's run lock is held elsewhere.
type LockError struct {
	Store string
	Path  string
	Err   error
}

// Error implements the error interface
func (e *LockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot lock store %s (%s): %v", e.Store, e.Path, e.Err)
	}
	return fmt.Sprintf("store %s is locked by another run (%s)", e.Store, e.Path)
}

// Unwrap implements errors.Unwrap
func (e *LockError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *LockError) Is(target error) bool {
	return target == ErrRunInProgress
}

// NewLockError creates a new LockError
func NewLockError(store, path string, err error) *LockError {
	return &LockError{Store: store, Path: path, Err: err}
}

// StoreError attaches the store name to an error from a store run
type StoreError struct {
	Store     string
	Operation string // "scan", "sync", "push", "rerun"
	Err       error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed for store %s: %v", e.Operation, e.Store, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(store, operation string, err error) *StoreError {
	return &StoreError{Store: store, Operation: operation, Err: err}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsRemoteUnavailable checks if an error indicates the remote is unavailable
func IsRemoteUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// IsConfigNotFound checks if an error is a missing configuration error
func IsConfigNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

// IsCorruptState checks if an error is a corrupt state error
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

// IsFatal reports whether err must abort the affected store's run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrListFetchFailed) ||
		errors.Is(err, ErrRunInProgress)
}

// IsRecoverable reports whether err can be logged and worked around.
func IsRecoverable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	return errors.Is(err, ErrDetailFetchFailed) ||
		errors.Is(err, ErrCorruptState) ||
		errors.Is(err, ErrUploadFailed)
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "csv", "timestamp"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "delete", "list", "rename"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapAPI wraps an error as an APIError
func WrapAPI(service string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Service:    service,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}

// WrapUpload wraps an error as an UploadError
func WrapUpload(path string, err error) error {
	if err == nil {
		return nil
	}
	return NewUploadError(path, err)
}
