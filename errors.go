package hxsignup

import "errors"

// Sentinel errors for component operations.
var (
	ErrNotFound         = errors.New("hxsignup: resource not found")
	ErrDecryptFailed    = errors.New("hxsignup: parameter decryption failed")
	ErrSignatureInvalid = errors.New("hxsignup: signature verification failed")
	ErrInvalidFormat    = errors.New("hxsignup: invalid parameter format")
	ErrHydrationFailed  = errors.New("hxsignup: hydration failed")
)

// IsNotFound checks if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDecryptionError checks if err is a decryption, signature or format
// error, all of which mean the client sent props we did not issue.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, ErrInvalidFormat)
}
