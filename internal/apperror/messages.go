package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Request validation
	CodeInvalidDirection: "must specify BUY or SELL",
	CodeInvalidTradeSize: "Trade size must be greater than zero",
	CodeUnknownToken:     "No token metadata available",

	// Venue outcomes
	CodeTokenUnavailable:      "Token is not available on venue",
	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeNoResponders:          "No one responded with an order",
	CodeUpstreamError:         "Unexpected response from venue",
	CodeInvalidOrderbook:      "Invalid orderbook data",

	// Peer session
	CodeCallTimeout:     "Request timed out",
	CodeAuthRejected:    "Address is not authorized",
	CodeTransportClosed: "Connection lost",
	CodeNotConnected:    "Peer session is not authenticated",
	CodeSigningFailed:   "Failed to sign challenge",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Chain reads
	CodeEthereumRPCError:   "Ethereum RPC call failed",
	CodeContractCallFailed: "Smart contract call failed",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}

// DefaultMessage returns the stock message for code, or "" when none is defined.
func DefaultMessage(code Code) string {
	return messages[code]
}
