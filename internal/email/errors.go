package email

import "errors"

var (
	// ErrInvalidFromAddress is returned when the from address is invalid.
	ErrInvalidFromAddress = errors.New("email: invalid from address")

	// ErrInvalidToAddress is returned when the to address is invalid.
	ErrInvalidToAddress = errors.New("email: invalid to address")

	// ErrNoRecipient is returned when the partner has no email on file.
	ErrNoRecipient = errors.New("email: partner has no email address")
)
