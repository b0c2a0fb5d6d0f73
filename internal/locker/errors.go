package locker

import "errors"

// ErrLockTimeout is returned when a slot stays held past the wait budget.
var ErrLockTimeout = errors.New("timed out waiting for slot lock")
