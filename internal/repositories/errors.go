package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrSlotOccupied is returned by SlotRepository.Claim when another ride
	// already holds the slot: the conditional update touched zero rows.
	ErrSlotOccupied = errors.New("slot already occupied")

	// ErrDuplicateTransaction is returned when a purchase with the same
	// transaction id has already been recorded.
	ErrDuplicateTransaction = errors.New("transaction already recorded")

	// ErrStaleState is returned by Transition when the row is no longer in
	// any of the expected states: a concurrent transition committed first.
	ErrStaleState = errors.New("record state changed concurrently")

	// ErrSlotOverlap is returned by SlotRepository.Create when the window
	// intersects another slot of the same instructor.
	ErrSlotOverlap = errors.New("slot overlaps an existing window")

	// ErrDuplicatePending is returned by ChangeRequestRepository.Create when
	// the course already carries a pending request.
	ErrDuplicatePending = errors.New("pending change request already exists")
)

// IsNotFoundError reports whether err indicates a missing record.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
