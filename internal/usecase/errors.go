package usecase

import "errors"

var (
	// ErrValidation indicates malformed input. The concrete error is a *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyExists indicates the email belongs to a verified account.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrNotFound indicates no account is registered for the email.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOTP indicates the submitted code does not match the pending one.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrOTPExpired indicates the submitted code matched but its validity window has passed.
	ErrOTPExpired = errors.New("otp expired")
	// ErrDelivery indicates the verification code could not be handed to the notifier.
	ErrDelivery = errors.New("verification delivery failed")
	// ErrStore indicates the credential or session store failed.
	ErrStore = errors.New("store failure")
	// ErrSessionNotFound indicates the session token is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationError(message string) error {
	return &ValidationError{Message: message}
}
