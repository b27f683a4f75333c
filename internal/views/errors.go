package views

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityExceeded = errors.New("saved view capacity exceeded")
	ErrAlreadyMounted   = errors.New("synchronizer is already mounted")
)

// CapacityError is returned by CreateView when the table is full and every
// view is persisted.
type CapacityError struct {
	TableID string
	Cap     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("table '%s' already holds %d saved views and none can be evicted", e.TableID, e.Cap)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
