package service

import "errors"

var (
	ErrValidation = errors.New("validation failed")

	// auth
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")

	// gadgets
	ErrGadgetNotFound        = errors.New("gadget not found")
	ErrInvalidTransition     = errors.New("use DELETE to decommission")
	ErrAlreadyDecommissioned = errors.New("gadget is decommissioned")
	ErrAlreadyDestroyed      = errors.New("gadget already destroyed")
	ErrCodenameTaken         = errors.New("codename collision, please retry")
)

// ValidationError carries a client-facing message and matches ErrValidation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
