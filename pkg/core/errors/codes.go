// File: codes.go
// Title: Error Code Definitions
// Description: Defines the error codes returned by the store, the connection
//              pool and the services built on them. The RPC boundary maps
//              these codes to transport status codes in a single place.
// License: MIT

package errors

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeTimeout      Code = "TIMEOUT"

	// The service is shutting down and rejects or cuts off work
	CodeUnavailable Code = "UNAVAILABLE"

	// Database and storage
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeConnectionLost      Code = "CONNECTION_LOST"

	// Connection pool
	CodePoolExhausted Code = "POOL_EXHAUSTED"
	CodeConnectFailed Code = "CONNECT_FAILED"

	// Configuration and startup
	CodeInvalidConfig         Code = "INVALID_CONFIG"
	CodeServiceInitialization Code = "SERVICE_INITIALIZATION"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsValid checks if the error code is a known valid code
func (c Code) IsValid() bool {
	switch c {
	case CodeUnknown, CodeInternal, CodeNotFound, CodeInvalidInput, CodeTimeout, CodeUnavailable,
		CodeConstraintViolation, CodeConnectionLost,
		CodePoolExhausted, CodeConnectFailed,
		CodeInvalidConfig, CodeServiceInitialization:
		return true
	default:
		return false
	}
}

// Category returns the high-level category of the error code
func (c Code) Category() string {
	switch c {
	case CodeConstraintViolation, CodeConnectionLost:
		return "database"
	case CodePoolExhausted, CodeConnectFailed:
		return "pool"
	case CodeInvalidConfig, CodeServiceInitialization:
		return "configuration"
	default:
		return "generic"
	}
}

// Unavailable reports whether the code means no database connection could be used
func (c Code) Unavailable() bool {
	return c == CodePoolExhausted || c == CodeConnectFailed || c == CodeConnectionLost
}
