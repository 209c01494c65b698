package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Quote error codes
const (
	// Request validation
	CodeInvalidDirection Code = "INVALID_DIRECTION"
	CodeInvalidTradeSize Code = "INVALID_TRADE_SIZE"
	CodeUnknownToken     Code = "UNKNOWN_TOKEN"

	// Venue outcomes
	CodeTokenUnavailable      Code = "TOKEN_UNAVAILABLE"
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeNoResponders          Code = "NO_RESPONDERS"
	CodeUpstreamError         Code = "UPSTREAM_ERROR"
	CodeInvalidOrderbook      Code = "INVALID_ORDERBOOK"

	// Peer session
	CodeCallTimeout     Code = "CALL_TIMEOUT"
	CodeAuthRejected    Code = "AUTH_REJECTED"
	CodeTransportClosed Code = "TRANSPORT_CLOSED"
	CodeNotConnected    Code = "PEER_NOT_CONNECTED"
	CodeSigningFailed   Code = "SIGNING_FAILED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Chain reads
	CodeEthereumRPCError   Code = "ETHEREUM_RPC_ERROR"
	CodeContractCallFailed Code = "CONTRACT_CALL_FAILED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
