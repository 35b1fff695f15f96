package interfaces

import "errors"

// ErrNotFound is returned by repositories when the requested record is absent.
// Every backend wraps it, so callers can use errors.Is regardless of backend.
var ErrNotFound = errors.New("not found")
