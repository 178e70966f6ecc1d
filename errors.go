package carrierconf

import "errors"

// Caller-facing errors returned by the carrier store. Storage and asset
// failures are recovered inside the store and never surface as these.
var (
	// ErrPermissionDenied means the caller lacks write-settings permission
	// and carrier privileges for the requested columns or operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidRequest means the request was rejected before any mutation,
	// for example an update by id that also carries a selection.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedOperation means the resource does not support the
	// requested mutation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
