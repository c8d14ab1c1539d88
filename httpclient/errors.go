package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/gaborage/go-netkit/request"
)

// ClientError represents the failures a Manager reports.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	InvalidURLError      ErrorType = "invalid_url"
	EncodingError        ErrorType = "encoding"
	CredentialsError     ErrorType = "credentials"
	UnknownResponseError ErrorType = "unknown_response"
	NetworkError         ErrorType = "network"
	EmptyCacheError      ErrorType = "empty_cache"
	DecodableError       ErrorType = "decodable"
	NoMockError          ErrorType = "no_mock"
	InterceptorError     ErrorType = "interceptor"
)

// buildError carries a request.BuildError into the client taxonomy.
type buildError struct {
	errType ErrorType
	wrapped *request.BuildError
}

func (e *buildError) Error() string {
	return e.wrapped.Error()
}

func (e *buildError) Type() ErrorType {
	return e.errType
}

func (e *buildError) Unwrap() error {
	return e.wrapped
}

// unknownResponseError is a transport failure: no HTTP response was received.
type unknownResponseError struct {
	message string
	wrapped error
}

func (e *unknownResponseError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("unknown response: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("unknown response: %s", e.message)
}

func (e *unknownResponseError) Type() ErrorType {
	return UnknownResponseError
}

func (e *unknownResponseError) Unwrap() error {
	return e.wrapped
}

// networkError is a response with a non-2xx status.
type networkError struct {
	statusCode int
	body       []byte
}

func (e *networkError) Error() string {
	return fmt.Sprintf("network error: HTTP request failed (status: %d)", e.statusCode)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) StatusCode() int {
	return e.statusCode
}

func (e *networkError) Body() []byte {
	return e.body
}

// emptyCacheError is a cache-only lookup that found nothing fresh.
type emptyCacheError struct {
	key     string
	wrapped error
}

func (e *emptyCacheError) Error() string {
	return fmt.Sprintf("empty cache: no fresh entry for key %q", e.key)
}

func (e *emptyCacheError) Type() ErrorType {
	return EmptyCacheError
}

func (e *emptyCacheError) Unwrap() error {
	return e.wrapped
}

// decodableError is a body that could not be decoded into the requested type.
type decodableError struct {
	typeName string
	wrapped  error
}

func (e *decodableError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("decodable error: cannot decode %s: %v", e.typeName, e.wrapped)
	}
	return fmt.Sprintf("decodable error: cannot decode %s", e.typeName)
}

func (e *decodableError) Type() ErrorType {
	return DecodableError
}

func (e *decodableError) Unwrap() error {
	return e.wrapped
}

// TypeName returns the Go type the body was decoded into.
func (e *decodableError) TypeName() string {
	return e.typeName
}

// noMockError is a mock request without a usable mock file.
type noMockError struct {
	description string
	wrapped     error
}

func (e *noMockError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("no mock available for %s: %v", e.description, e.wrapped)
	}
	return fmt.Sprintf("no mock available for %s", e.description)
}

func (e *noMockError) Type() ErrorType {
	return NoMockError
}

func (e *noMockError) Unwrap() error {
	return e.wrapped
}

// interceptorError represents interceptor-related errors
type interceptorError struct {
	message string
	wrapped error
	stage   string
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorError
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// NewBuildError maps a request build failure onto the client taxonomy.
func NewBuildError(err *request.BuildError) ClientError {
	t := EncodingError
	switch err.Kind {
	case request.KindInvalidURL:
		t = InvalidURLError
	case request.KindCredentials:
		t = CredentialsError
	}
	return &buildError{errType: t, wrapped: err}
}

// NewUnknownResponseError creates a transport failure error
func NewUnknownResponseError(message string, wrapped error) ClientError {
	return &unknownResponseError{
		message: message,
		wrapped: wrapped,
	}
}

// NewNetworkError creates an HTTP status error carrying the response body
func NewNetworkError(statusCode int, body []byte) ClientError {
	return &networkError{
		statusCode: statusCode,
		body:       body,
	}
}

// NewEmptyCacheError creates a cache-only miss error
func NewEmptyCacheError(key string, wrapped error) ClientError {
	return &emptyCacheError{
		key:     key,
		wrapped: wrapped,
	}
}

// NewDecodableError creates a decoding error for typeName
func NewDecodableError(typeName string, wrapped error) ClientError {
	return &decodableError{
		typeName: typeName,
		wrapped:  wrapped,
	}
}

// NewNoMockError creates a missing mock error
func NewNoMockError(description string, wrapped error) ClientError {
	return &noMockError{
		description: description,
		wrapped:     wrapped,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		wrapped: wrapped,
		stage:   stage,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	code, ok := StatusCode(err)
	return ok && code == statusCode
}

// StatusCode extracts the HTTP status from a network error.
func StatusCode(err error) (int, bool) {
	var netErr *networkError
	if errors.As(err, &netErr) {
		return netErr.StatusCode(), true
	}
	return 0, false
}

// ErrorBody returns the response body carried by a network error.
func ErrorBody(err error) []byte {
	var netErr *networkError
	if errors.As(err, &netErr) {
		return netErr.Body()
	}
	return nil
}

// IsTimeout reports whether a transport failure was a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsCanceled reports whether a transport failure came from cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
