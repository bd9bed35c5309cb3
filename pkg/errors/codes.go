package errors

// JSON-RPC 2.0 Standard Error Codes
const (
	// CodeParseError indicates invalid JSON was received by the server
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the JSON sent is not a valid Request object
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// CodeInternalError indicates internal JSON-RPC error
	CodeInternalError int = -32603
)

// Transport-layer error codes. These extend the JSON-RPC range the same
// way the protocol-level codes do, grouped by concern.
const (
	// Authentication Errors (-32100 to -32199)
	CodeUnauthorized int = -32100 // Client is not authorized
	CodeAuthRequired int = -32101 // Authentication required
	CodeInvalidToken int = -32102 // Invalid authentication token
	CodeTokenExpired int = -32103 // Authentication token expired

	// Operation Errors (-32300 to -32399)
	CodeOperationCancelled int = -32300 // Operation was cancelled
	CodeOperationTimeout   int = -32301 // Operation timed out

	// Transport Errors (-32500 to -32599)
	CodeTransportError     int = -32500 // Generic transport error
	CodeConnectionFailed   int = -32501 // Failed to establish connection
	CodeConnectionLost     int = -32502 // Connection lost during operation
	CodeConnectionTimeout  int = -32503 // Connection timed out
	CodeFrameError         int = -32504 // Malformed wire frame
	CodeMessageTooLarge    int = -32505 // Message exceeds configured size limit
	CodeCertificateError   int = -32506 // Certificate provisioning or binding failed
	CodeTransportNotReady  int = -32507 // Transport used before Start
	CodeCorrelationTimeout int = -32508 // No correlated reply arrived in time
	CodeServiceUnavailable int = -32509 // Transport shutting down
)

// CodeName returns a human-readable name for an error code, or "Unknown".
func CodeName(code int) string {
	names := map[int]string{
		CodeParseError:         "ParseError",
		CodeInvalidRequest:     "InvalidRequest",
		CodeMethodNotFound:     "MethodNotFound",
		CodeInvalidParams:      "InvalidParams",
		CodeInternalError:      "InternalError",
		CodeUnauthorized:       "Unauthorized",
		CodeAuthRequired:       "AuthRequired",
		CodeInvalidToken:       "InvalidToken",
		CodeTokenExpired:       "TokenExpired",
		CodeOperationCancelled: "OperationCancelled",
		CodeOperationTimeout:   "OperationTimeout",
		CodeTransportError:     "TransportError",
		CodeConnectionFailed:   "ConnectionFailed",
		CodeConnectionLost:     "ConnectionLost",
		CodeConnectionTimeout:  "ConnectionTimeout",
		CodeFrameError:         "FrameError",
		CodeMessageTooLarge:    "MessageTooLarge",
		CodeCertificateError:   "CertificateError",
		CodeTransportNotReady:  "TransportNotReady",
		CodeCorrelationTimeout: "CorrelationTimeout",
		CodeServiceUnavailable: "ServiceUnavailable",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return "Unknown"
}
