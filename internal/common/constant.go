package common

// BearerScheme is the Authorization header scheme carrying access and
// refresh tokens.
const BearerScheme = "Bearer"

// TokenType is reported to clients alongside issued token pairs.
const TokenType = "bearer"

// RequestIDHeaderName carries the per-request correlation id.
const RequestIDHeaderName = "X-Request-Id"
