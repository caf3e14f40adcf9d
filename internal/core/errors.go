package core

import "errors"

// Error taxonomy shared by all components. Call sites wrap these with
// fmt.Errorf("%w: detail", ...) so handlers can map them with errors.Is.
var (
	// ErrAuthentication covers missing, malformed, or badly signed tokens.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSession means the token parsed but no active, unexpired session
	// row backs it.
	ErrSession = errors.New("session invalid or expired")

	// ErrValidation covers bad fields, out-of-range installment numbers,
	// and double-pay/double-unpay attempts.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is a duplicate primary key on create.
	ErrConflict = errors.New("record already exists")

	// ErrSyncIntegrity is a foreign-key ordering violation inside a sync
	// batch.
	ErrSyncIntegrity = errors.New("sync batch integrity violation")

	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("record not found")
)
