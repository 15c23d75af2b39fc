package errors

import "errors"

// IsCredentialFailure reports whether err indicates an unusable or
// rejected credential, as opposed to an upstream or transport fault.
// The scheduler uses this to decide whether to record a failure on the
// task's bound account.
func IsCredentialFailure(err error) bool {
	var noCred *ErrNoUsableCredential
	if errors.As(err, &noCred) {
		return true
	}
	var rejected *ErrCredentialRejected
	return errors.As(err, &rejected)
}

// IsUpstreamFailure reports whether err came from a non-zero upstream
// envelope code.
func IsUpstreamFailure(err error) bool {
	var upstream *ErrUpstreamAPI
	return errors.As(err, &upstream)
}
