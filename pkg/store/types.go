package store

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

// ErrConflict signals that a transaction observed a concurrent commit.
// Backends retry on it internally; callers should never see it.
type ErrConflict struct {
}

func (e *ErrConflict) Error() string {
	return "transaction conflict"
}

func IsConflict(err error) bool {
	_, ok := err.(*ErrConflict)
	return ok
}
