package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrInvalidAmount      = errors.New("INVALID_AMOUNT")
	ErrSessionNotFound    = errors.New("SESSION_NOT_FOUND")
	ErrSessionTerminal    = errors.New("SESSION_ALREADY_TERMINAL")
	ErrMissingPaymentID   = errors.New("MISSING_PAYMENT_ID")
	ErrMissingCard        = errors.New("MISSING_CARD")
)
