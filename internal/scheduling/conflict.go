package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConflictChecker answers whether a candidate slot overlaps any bookable
// appointment for a practitioner in a clinic. No-show appointments do not
// block the slot they previously occupied.
type ConflictChecker struct {
	repo Repository
}

func NewConflictChecker(repo Repository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// HasOverlap scans scheduled appointments for the clinic and practitioner.
// exclude allows a reschedule of appointment X to be checked against all
// other appointments without conflicting with itself.
func (c *ConflictChecker) HasOverlap(ctx context.Context, clinicID, practitionerID uuid.UUID, candidate TimeSlot, exclude *uuid.UUID) (bool, error) {
	existing, err := c.repo.ListScheduledForPractitioner(ctx, clinicID, practitionerID)
	if err != nil {
		return false, fmt.Errorf("list practitioner appointments: %w", err)
	}

	for _, a := range existing {
		if a.Status != StatusScheduled {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.Slot.Overlaps(candidate) {
			return true, nil
		}
	}
	return false, nil
}
