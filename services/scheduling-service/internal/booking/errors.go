package booking

import "errors"

// Error taxonomy for the scheduling engine. Handlers map these to HTTP
// statuses; everything else is treated as an internal failure.
var (
	// ErrInvalidRequest covers malformed or out-of-bounds input. Detected
	// before the ledger is touched, never partially applied.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound means the guide (or booking) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the authoritative re-check found the requested
	// interval no longer free. Expected under contention; callers should
	// re-query availability and pick another slot.
	ErrConflict = errors.New("booking conflict")

	// ErrUnavailable wraps infrastructure failures from the backing stores.
	// Retryable; never to be read as "no bookings exist".
	ErrUnavailable = errors.New("store unavailable")
)
