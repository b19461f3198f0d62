package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Domain-level errors shared by every command group
var (
	ErrCacheKeyNotFound   = errors.New("cache key not found")
	ErrConfigurationError = errors.New("configuration error")
	ErrMissingProjectID   = errors.New("project ID is required")
	ErrMissingDatabaseURL = errors.New("database URL is required")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPublishCanceled    = errors.New("publish canceled")
)

// CredentialError reports a missing or unusable service credential, or a failed
// token exchange. Commands exit with status 1 when it happens at start-up.
type CredentialError struct {
	Source string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("credential %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("credential: %v", e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx response from a Firebase REST endpoint.
// Body holds the response body verbatim.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// ConcurrencyConflict is returned when a conditional write was rejected because the
// caller's ETag no longer matches the server copy.
type ConcurrencyConflict struct {
	ETag string
	Err  *HTTPError
}

func (e *ConcurrencyConflict) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("etag %q is stale: %s", e.ETag, strings.TrimSpace(e.Err.Body))
	}
	return fmt.Sprintf("etag %q is stale", e.ETag)
}

func (e *ConcurrencyConflict) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// SdkError wraps an error raised by a Firebase client library or streaming endpoint
// together with the vendor error code.
type SdkError struct {
	Service ServiceType
	Code    string
	Err     error
}

func (e *SdkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Code, e.Err)
}

func (e *SdkError) Unwrap() error {
	return e.Err
}

// Vendor error codes surfaced in SdkError.Code
const (
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodeUIDAlreadyExists   = "UID_ALREADY_EXISTS"
	CodePhoneAlreadyExists = "PHONE_NUMBER_ALREADY_EXISTS"
	CodeListenerCancelled  = "LISTENER_CANCELLED"
	CodeAuthRevoked        = "AUTH_REVOKED"
	CodeStreamClosed       = "STREAM_CLOSED"
	CodeTransactionAborted = "TRANSACTION_ABORTED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeNotFound           = "NOT_FOUND"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternal           = "INTERNAL"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeUnregistered       = "UNREGISTERED"
	CodeSenderIDMismatch   = "SENDER_ID_MISMATCH"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeThirdPartyAuth     = "THIRD_PARTY_AUTH_ERROR"
	CodeUnknown            = "UNKNOWN"
)

// IsCredentialError reports whether err is or wraps a CredentialError
func IsCredentialError(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr)
}

// IsConcurrencyConflict reports whether err is or wraps a ConcurrencyConflict
func IsConcurrencyConflict(err error) bool {
	var conflict *ConcurrencyConflict
	return errors.As(err, &conflict)
}

// HTTPStatus extracts the status code of a wrapped HTTPError, or 0
func HTTPStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// SdkCode extracts the vendor code of a wrapped SdkError, or ""
func SdkCode(err error) string {
	var sdkErr *SdkError
	if errors.As(err, &sdkErr) {
		return sdkErr.Code
	}
	return ""
}

// ErrorBody returns what a command prints for a failed remote call: the response
// body for HTTP errors, the message otherwise.
func ErrorBody(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Body
	}
	return err.Error()
}

// IsRemoteError reports whether err came back from a Firebase backend. Such
// errors are printed by the command and do not change the exit status.
func IsRemoteError(err error) bool {
	var (
		httpErr  *HTTPError
		sdkErr   *SdkError
		conflict *ConcurrencyConflict
	)
	return errors.As(err, &httpErr) || errors.As(err, &sdkErr) || errors.As(err, &conflict) ||
		errors.Is(err, ErrPublishCanceled)
}

// ExitCode maps an error returned by a command to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsCredentialError(err):
		return 1
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrConfigurationError):
		return 2
	case IsRemoteError(err):
		return 0
	default:
		return 1
	}
}
