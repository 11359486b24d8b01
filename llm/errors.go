package llm

import "fmt"

// ErrorKind represents the category of failure that occurred.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota
	KindValidation
	KindTimeout
	KindTransport
	KindProvider
	KindCircuitOpen
	KindBudgetExceeded
	KindOutputValidation
	KindUnknown
)

// String returns a human-readable description of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindValidation:
		return "validation error"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport error"
	case KindProvider:
		return "provider error"
	case KindCircuitOpen:
		return "circuit open"
	case KindBudgetExceeded:
		return "budget exceeded"
	case KindOutputValidation:
		return "output validation error"
	default:
		return "unknown error"
	}
}

// Error is the single tagged error type raised at every failure boundary.
// Callers can distinguish "try again later" from "fix your request" via the
// Kind and Retryable fields without parsing messages.
type Error struct {
	Kind       ErrorKind
	Message    string
	Provider   ProviderID
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind.String(), e.Message)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status: %d)", msg, e.StatusCode)
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking by kind for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewConfigurationError creates a fatal configuration error, raised when no
// provider can be resolved for a request.
func NewConfigurationError(message string) *Error {
	return &Error{
		Kind:      KindConfiguration,
		Message:   message,
		Retryable: false,
	}
}

// NewValidationError creates an input validation error, surfaced before any
// network attempt.
func NewValidationError(message string) *Error {
	return &Error{
		Kind:      KindValidation,
		Message:   message,
		Retryable: false,
	}
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(provider ProviderID, message string) *Error {
	return &Error{
		Kind:      KindTimeout,
		Message:   message,
		Provider:  provider,
		Retryable: true,
	}
}

// NewTransportError creates a retryable network-level error.
func NewTransportError(provider ProviderID, message string, cause error) *Error {
	return &Error{
		Kind:      KindTransport,
		Message:   message,
		Provider:  provider,
		Retryable: true,
		Cause:     cause,
	}
}

// NewProviderError creates an error for a provider response with an HTTP
// status code. Retryability is decided by the retry executor against its
// configured status set.
func NewProviderError(provider ProviderID, statusCode int, message string) *Error {
	return &Error{
		Kind:       KindProvider,
		Message:    message,
		Provider:   provider,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500 || statusCode == 408 || statusCode == 429,
	}
}

// NewCircuitOpenError creates an error raised when the circuit breaker
// rejects a call without invoking the provider. Fatal for this call,
// self-healing after the reset window.
func NewCircuitOpenError(provider ProviderID) *Error {
	return &Error{
		Kind:      KindCircuitOpen,
		Message:   fmt.Sprintf("circuit breaker is open for provider %s", provider),
		Provider:  provider,
		Retryable: false,
	}
}

// NewBudgetExceededError creates an error raised when a token budget is
// exhausted. Fatal until the next reset boundary.
func NewBudgetExceededError(message string) *Error {
	return &Error{
		Kind:      KindBudgetExceeded,
		Message:   message,
		Retryable: false,
	}
}

// NewOutputValidationError creates an error for a structured response that
// failed JSON parsing or schema validation. Never retried since the network
// call already completed.
func NewOutputValidationError(provider ProviderID, message string, cause error) *Error {
	return &Error{
		Kind:      KindOutputValidation,
		Message:   message,
		Provider:  provider,
		Retryable: false,
		Cause:     cause,
	}
}
