package index

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable indicates the index backend (database or embedding
// service) could not be reached. It is fatal for the current call; the
// caller decides whether to abort the whole operation.
var ErrStoreUnavailable = errors.New("index store unavailable")

// unavailable wraps err as an ErrStoreUnavailable while preserving the
// underlying message for the caller's logs.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %s", op, ErrStoreUnavailable, err)
}
