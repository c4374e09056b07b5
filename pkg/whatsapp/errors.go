package whatsapp

import "errors"

var (
	// ErrInvalidConfig is returned when credentials or the sender are missing
	ErrInvalidConfig = errors.New("invalid whatsapp config")

	// ErrInvalidRequest is returned when the gateway rejects the message parameters
	ErrInvalidRequest = errors.New("invalid message request")

	// ErrUnauthorized is returned when the account credentials are rejected
	ErrUnauthorized = errors.New("unauthorized: invalid account credentials")

	// ErrSendFailed is returned for any other non-2xx response
	ErrSendFailed = errors.New("message send failed")

	// ErrNetworkError is returned when the gateway cannot be reached
	ErrNetworkError = errors.New("network error")
)
