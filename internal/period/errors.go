package period

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPeriodClosed  = errors.New("period is closed")
	ErrAlreadyClosed = errors.New("period is already closed")
	ErrNotClosed     = errors.New("period is not closed")
	ErrInvalidReason = errors.New("a reason is required to reopen a period")
)

// ClosedError is returned when a mutation targets a date inside a closed period.
type ClosedError struct {
	Key  Key
	Date time.Time
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("period %s is closed: %s cannot be modified", e.Key, e.Date.Format(time.DateOnly))
}

func (e *ClosedError) Is(target error) bool {
	return target == ErrPeriodClosed
}
