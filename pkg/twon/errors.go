package twon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeLifecycle indicates the session is not in a state that allows the operation
	ErrTypeLifecycle ErrorType = iota
	// ErrTypeConnection indicates a transport-level failure (timeout, refused, DNS, etc.)
	ErrTypeConnection
	// ErrTypeUnsupportedDevice indicates the peer does not behave like a compatible device
	ErrTypeUnsupportedDevice
	// ErrTypeAPI indicates the device rejected the request with a known error code
	ErrTypeAPI
	// ErrTypeValidation indicates invalid input or a command the device state does not allow
	ErrTypeValidation
	// ErrTypeParse indicates a result payload that could not be decoded
	ErrTypeParse
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeLifecycle:
		return "Lifecycle Error"
	case ErrTypeConnection:
		return "Connection Error"
	case ErrTypeUnsupportedDevice:
		return "Unsupported Device"
	case ErrTypeAPI:
		return "API Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeParse:
		return "Parse Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// NetworkErrorSubtype provides more specific connection error classification
type NetworkErrorSubtype int

const (
	NetworkErrorGeneral NetworkErrorSubtype = iota
	NetworkErrorTimeout
	NetworkErrorConnectionRefused
	NetworkErrorDNS
	NetworkErrorHostUnreachable
	NetworkErrorNetworkUnreachable
)

// DeviceError is the single error type returned by this package.
type DeviceError struct {
	Type           ErrorType           // Category of error
	Message        string              // Human-readable error message
	Kind           APIErrorKind        // Vendor error kind (ErrTypeAPI only)
	Code           int                 // Raw vendor error code (ErrTypeAPI / unknown codes)
	Err            error               // Underlying error (if any)
	NetworkSubtype NetworkErrorSubtype // More specific connection error type
	Host           string              // Device host (for context)
	Retryable      bool                // Whether a caller may reasonably retry

	sentinel error
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Type == ErrTypeAPI {
		msg = fmt.Sprintf("%s: %s (%s, code %d)", e.Type, e.Message, e.Kind, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels so callers can use errors.Is.
func (e *DeviceError) Is(target error) bool {
	return e.sentinel != nil && e.sentinel == target
}

// Sentinels for local lifecycle and domain validation failures.
var (
	ErrNotInitialized      = errors.New("device not initialized")
	ErrAlreadyInitializing = errors.New("already initializing")
	ErrNoSwitches          = errors.New("no switches configured")
	ErrInvalidSwitchID     = errors.New("invalid switch id")
	ErrSwitchDisabled      = errors.New("switch disabled")
	ErrNoPorts             = errors.New("no ports configured")
	ErrUnknownPortID       = errors.New("unknown port id")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrUnsupportedEvent    = errors.New("unsupported log event")
)

func newLifecycleError(sentinel error) *DeviceError {
	return &DeviceError{
		Type:     ErrTypeLifecycle,
		Message:  sentinel.Error(),
		sentinel: sentinel,
	}
}

func newDomainError(sentinel error, detail string) *DeviceError {
	msg := sentinel.Error()
	if detail != "" {
		msg += ": " + detail
	}
	return &DeviceError{
		Type:     ErrTypeValidation,
		Message:  msg,
		sentinel: sentinel,
	}
}

// ClassifyNetworkError analyzes a transport error and returns a connection error
func ClassifyNetworkError(err error, host string) *DeviceError {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &DeviceError{
			Type:           ErrTypeConnection,
			Message:        "request timed out",
			Err:            err,
			NetworkSubtype: NetworkErrorTimeout,
			Host:           host,
			Retryable:      true,
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &DeviceError{
			Type:           ErrTypeConnection,
			Message:        fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:            err,
			NetworkSubtype: NetworkErrorDNS,
			Host:           host,
			Retryable:      false,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &DeviceError{
				Type:           ErrTypeConnection,
				Message:        "device refused connection",
				Err:            err,
				NetworkSubtype: NetworkErrorConnectionRefused,
				Host:           host,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &DeviceError{
				Type:           ErrTypeConnection,
				Message:        "host unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorHostUnreachable,
				Host:           host,
				Retryable:      true,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &DeviceError{
				Type:           ErrTypeConnection,
				Message:        "network unreachable",
				Err:            err,
				NetworkSubtype: NetworkErrorNetworkUnreachable,
				Host:           host,
				Retryable:      true,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err, host)
	}

	return &DeviceError{
		Type:           ErrTypeConnection,
		Message:        "connection error",
		Err:            err,
		NetworkSubtype: NetworkErrorGeneral,
		Host:           host,
		Retryable:      true,
	}
}

// NewConnectionError creates a connection error with automatic classification
func NewConnectionError(message string, err error, host string) *DeviceError {
	classified := ClassifyNetworkError(err, host)
	if classified == nil {
		return &DeviceError{Type: ErrTypeConnection, Message: message, Host: host, Retryable: true}
	}
	classified.Message = message + ": " + classified.Message
	return classified
}

// NewUnsupportedDeviceError creates an error signalling an incompatible peer
func NewUnsupportedDeviceError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeUnsupportedDevice,
		Message: message,
	}
}

// NewParseError creates a result decoding error
func NewParseError(message string, err error) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeParse,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string) *DeviceError {
	return &DeviceError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

func asDeviceError(err error) (*DeviceError, bool) {
	var devErr *DeviceError
	ok := errors.As(err, &devErr)
	return devErr, ok
}

// IsConnectionError checks if an error is a transport-level failure
func IsConnectionError(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeConnection
}

// IsUnsupportedDevice checks if an error signals an incompatible device or firmware
func IsUnsupportedDevice(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeUnsupportedDevice
}

// IsAPIError checks if an error is a classified API error of the given kind
func IsAPIError(err error, kind APIErrorKind) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeAPI && devErr.Kind == kind
}

// IsAuthError checks if an error is caused by missing or insufficient authentication
func IsAuthError(err error) bool {
	return IsAPIError(err, APIErrAuthorizationRequired) ||
		IsAPIError(err, APIErrInsufficientPrivileges) ||
		IsAPIError(err, APIErrInvalidAuthenticationMethod)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeValidation
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Type == ErrTypeParse
}

// IsRetryable checks if an error could succeed when retried by the caller
func IsRetryable(err error) bool {
	devErr, ok := asDeviceError(err)
	return ok && devErr.Retryable
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) []string {
	devErr, ok := asDeviceError(err)
	if !ok {
		return []string{"An unexpected error occurred. Please try again."}
	}

	switch devErr.Type {
	case ErrTypeConnection:
		switch devErr.NetworkSubtype {
		case NetworkErrorTimeout:
			return []string{
				"Check that the device is powered on",
				"Verify the host address and protocol (http/https)",
				"Try increasing the timeout",
			}
		case NetworkErrorConnectionRefused:
			return []string{
				"The HTTP API may be disabled on the device",
				"Check whether the device only accepts HTTPS",
			}
		case NetworkErrorDNS:
			return []string{
				"Use the IP address instead of the hostname",
				"Check your network DNS settings",
			}
		default:
			return []string{
				"Verify the device IP address is correct",
				"Check that you're on the same network as the device",
			}
		}
	case ErrTypeUnsupportedDevice:
		return []string{
			"The host did not answer like a compatible intercom",
			"Check the host and protocol, and the device firmware version",
		}
	case ErrTypeAPI:
		switch devErr.Kind {
		case APIErrAuthorizationRequired, APIErrInsufficientPrivileges:
			return []string{
				"Supply a username and password for an API account",
				"Check the account's privileges in the device's HTTP API settings",
			}
		case APIErrInvalidAuthenticationMethod:
			return []string{"Switch between basic and digest authentication"}
		case APIErrInvalidConnectionType:
			return []string{"The service requires a different protocol (try https)"}
		case APIErrFunctionDisabled:
			return []string{"Enable the service in the device's HTTP API settings"}
		case APIErrNotSupported:
			return []string{"This device model or license does not provide the function"}
		}
		return []string{fmt.Sprintf("The device rejected the request (%s)", devErr.Kind)}
	case ErrTypeLifecycle:
		return []string{"Initialize the device session before issuing commands"}
	default:
		return []string{strings.TrimSpace(devErr.Message)}
	}
}
