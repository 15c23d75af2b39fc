package errors

import "fmt"

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

type ErrServerShutdown struct {
	Err error
}

func (e *ErrServerShutdown) Error() string {
	return fmt.Sprintf("server shutdown failed: %v", e.Err)
}

func (e *ErrServerShutdown) Unwrap() error {
	return e.Err
}

// Credential errors

// ErrNoUsableCredential means every resolver tier came up empty: no
// bound account, no author-matched account, no configured default and
// no valid account at all.
type ErrNoUsableCredential struct {
	TaskID string
}

func (e *ErrNoUsableCredential) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("no usable credential for task %s", e.TaskID)
	}
	return "no usable credential available"
}

// ErrCredentialRejected means upstream refused an otherwise well-formed
// credential (login check failed or the API returned an auth error).
type ErrCredentialRejected struct {
	AccountID string
	Err       error
}

func (e *ErrCredentialRejected) Error() string {
	return fmt.Sprintf("credential rejected for account %s: %v", e.AccountID, e.Err)
}

func (e *ErrCredentialRejected) Unwrap() error {
	return e.Err
}

// ErrInvalidCookie means the raw cookie material handed to a bind
// operation was malformed.
type ErrInvalidCookie struct {
	Reason string
}

func (e *ErrInvalidCookie) Error() string {
	return fmt.Sprintf("invalid cookie: %s", e.Reason)
}

// Upstream errors

// ErrUpstreamAPI means the platform answered with a non-zero envelope
// code.
type ErrUpstreamAPI struct {
	Endpoint string
	Code     int64
	Message  string
}

func (e *ErrUpstreamAPI) Error() string {
	return fmt.Sprintf("upstream API error on %s: code=%d message=%s", e.Endpoint, e.Code, e.Message)
}

// ErrNetwork wraps a transport-level failure calling upstream.
type ErrNetwork struct {
	Endpoint string
	Err      error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

// Signing errors

type ErrSigning struct {
	Reason string
}

func (e *ErrSigning) Error() string {
	return fmt.Sprintf("request signing failed: %s", e.Reason)
}

// Collection errors

// ErrCidResolution reports a bounded internal-id resolution failure.
type ErrCidResolution struct {
	Attempts int
	Err      error
}

func (e *ErrCidResolution) Error() string {
	return fmt.Sprintf("failed to resolve cid after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ErrCidResolution) Unwrap() error {
	return e.Err
}

// ErrUnknownTaskKind reports a task with a kind the collector cannot
// dispatch.
type ErrUnknownTaskKind struct {
	Kind string
}

func (e *ErrUnknownTaskKind) Error() string {
	return fmt.Sprintf("unknown task kind: %s", e.Kind)
}
