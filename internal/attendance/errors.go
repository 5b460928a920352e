package attendance

import "errors"

// Domain errors. Handlers map these to HTTP statuses; anything else that
// bubbles up from storage is logged and surfaced as a generic failure.
var (
	ErrValidation        = errors.New("invalid request")
	ErrClassNotFound     = errors.New("class not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrWindowClosed      = errors.New("attendance window closed or invalid code")
	ErrInvalidSession    = errors.New("invalid or inactive session")
	ErrWindowExpired     = errors.New("selfie window expired")
	ErrDuplicateRoll     = errors.New("duplicate roll number in submission")
	ErrAlreadySubmitted  = errors.New("attendance already submitted")
	ErrDependencyFailure = errors.New("dependency failure")
)
