package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed      = fmt.Errorf("authentication failed")
	ErrProfileNotFound = fmt.Errorf("profile not found")
	ErrNoProfiles      = fmt.Errorf("no profiles found on this account")

	// Phase-level errors: any of these aborts the whole run
	ErrSnapshotMissing = fmt.Errorf("snapshot not readable")
	ErrTargetState     = fmt.Errorf("failed to establish target state")
	ErrListUnresolved  = fmt.Errorf("failed to resolve named list")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
