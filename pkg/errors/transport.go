package errors

import (
	"fmt"
	"time"
)

// TransportErrorData contains structured data for transport-related errors
type TransportErrorData struct {
	Transport  string        `json:"transport"`
	Operation  string        `json:"operation,omitempty"`
	Endpoint   string        `json:"endpoint,omitempty"`
	Connected  bool          `json:"connected"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
}

// TransportError creates a generic transport error
func TransportError(transport, operation string, cause error) TransportErr {
	message := fmt.Sprintf("%s transport error", transport)
	if operation != "" {
		message = fmt.Sprintf("%s transport error during %s", transport, operation)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	return WrapError(
		cause,
		CodeTransportError,
		message,
		CategoryTransport,
		SeverityError,
	).WithData(&TransportErrorData{
		Transport: transport,
		Operation: operation,
		Connected: false,
		Retryable: true,
		Reason:    reason,
	})
}

// StdioTransportError creates an error for stdio transport failures
func StdioTransportError(operation string, cause error) TransportErr {
	return TransportError("stdio", operation, cause)
}

// HTTPTransportError creates an error for HTTP transport failures
func HTTPTransportError(operation string, cause error) TransportErr {
	return TransportError("http", operation, cause)
}

// WebSocketTransportError creates an error for WebSocket transport failures
func WebSocketTransportError(operation string, cause error) TransportErr {
	return TransportError("websocket", operation, cause)
}

// TransportNotInitialized creates an error for use of a transport before Start
func TransportNotInitialized(transport string) TransportErr {
	return NewErrorf(
		CodeTransportNotReady,
		CategoryTransport,
		SeverityError,
		"%s transport not initialized", transport,
	)
}

// TransportClosed creates an error for use of a transport after Stop
func TransportClosed(transport string) TransportErr {
	return NewErrorf(
		CodeServiceUnavailable,
		CategoryTransport,
		SeverityWarning,
		"%s transport closed", transport,
	)
}

// ConnectionFailed creates an error for connection failures
func ConnectionFailed(transport, endpoint string, cause error) TransportErr {
	message := fmt.Sprintf("failed to connect via %s", transport)
	if endpoint != "" {
		message = fmt.Sprintf("failed to connect to %s via %s", endpoint, transport)
	}
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	return WrapError(cause, CodeConnectionFailed, message, CategoryTransport, SeverityCritical)
}

// ConnectionLost creates an error for connections dropped mid-operation
func ConnectionLost(transport, connectionID string, cause error) TransportErr {
	message := fmt.Sprintf("lost %s connection", transport)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}

	err := WrapError(cause, CodeConnectionLost, message, CategoryTransport, SeverityWarning)
	if connectionID != "" {
		err = err.WithContext(&Context{ConnectionID: connectionID, Component: transport})
	}
	return err
}

// CorrelationTimeout creates an error for a correlated reply that never arrived.
// This is an expected outcome, not an internal fault.
func CorrelationTimeout(correlationID string, timeout time.Duration) TransportErr {
	return NewErrorf(
		CodeCorrelationTimeout,
		CategoryTimeout,
		SeverityWarning,
		"no reply for correlation id %s within %s", correlationID, timeout,
	).WithContext(&Context{CorrelationID: correlationID})
}

// CorrelationCancelled creates an error for a pending request removed by
// external cancellation before any reply arrived.
func CorrelationCancelled(correlationID string) TransportErr {
	return NewErrorf(
		CodeOperationCancelled,
		CategoryCancelled,
		SeverityInfo,
		"pending request %s cancelled", correlationID,
	).WithContext(&Context{CorrelationID: correlationID})
}

// FrameError creates an error for malformed wire frames
func FrameError(detail string, cause error) TransportErr {
	message := "malformed frame"
	if detail != "" {
		message = fmt.Sprintf("malformed frame: %s", detail)
	}
	return WrapError(cause, CodeFrameError, message, CategoryProtocol, SeverityWarning)
}

// MessageTooLarge creates an error for messages exceeding the configured limit
func MessageTooLarge(size, limit int64) TransportErr {
	return NewErrorf(
		CodeMessageTooLarge,
		CategoryValidation,
		SeverityWarning,
		"message size %d exceeds limit %d", size, limit,
	)
}

// AuthenticationFailed creates an error for rejected requests. The reason
// names the check that failed, never the credential contents.
func AuthenticationFailed(mode, reason string) TransportErr {
	message := fmt.Sprintf("%s authentication failed", mode)
	if reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	return NewError(CodeUnauthorized, message, CategoryAuth, SeverityWarning)
}

// CertificateError creates a fatal error for certificate provisioning or
// binding failures. Startup aborts on these; they are never retried.
func CertificateError(operation string, cause error) TransportErr {
	message := fmt.Sprintf("certificate %s failed", operation)
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return WrapError(cause, CodeCertificateError, message, CategoryTransport, SeverityCritical)
}
