package errors

import "fmt"

var (
	// Auth-time failures, surfaced as-is on the login/signup flow.
	ErrNotWhitelisted     = fmt.Errorf("registration number not found")
	ErrSessionActive      = fmt.Errorf("account is active in another session")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrAlreadyRegistered  = fmt.Errorf("registration number already bound to an account")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// Data-access failures.
	ErrNotFound         = fmt.Errorf("document not found")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
