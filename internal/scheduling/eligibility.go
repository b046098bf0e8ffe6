package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleVeterinarian Role = "veterinarian"
	RoleAssistant    Role = "assistant"
)

// Membership is a user's role in a clinic over a validity window. A nil
// ValidUntil means open-ended.
type Membership struct {
	UserID     uuid.UUID
	ClinicID   uuid.UUID
	Role       Role
	Disabled   bool
	ValidFrom  time.Time
	ValidUntil *time.Time
}

// Contains reports whether the membership window covers t.
func (m Membership) Contains(t time.Time) bool {
	if t.Before(m.ValidFrom) {
		return false
	}
	if m.ValidUntil != nil && t.After(*m.ValidUntil) {
		return false
	}
	return true
}

// MembershipDirectory looks up clinic memberships for a user. Implemented by
// the persistence adapter.
type MembershipDirectory interface {
	FindMemberships(ctx context.Context, userID, clinicID uuid.UUID) ([]Membership, error)
}

// EligibilityChecker answers whether a user may act as practitioner for a
// clinic at a given instant. Pure query: "not eligible" is false, not an
// error; only lookup failures return an error.
type EligibilityChecker struct {
	dir MembershipDirectory
}

func NewEligibilityChecker(dir MembershipDirectory) *EligibilityChecker {
	return &EligibilityChecker{dir: dir}
}

func (c *EligibilityChecker) IsEligible(ctx context.Context, userID, clinicID uuid.UUID, at time.Time, allowedRoles []Role) (bool, error) {
	memberships, err := c.dir.FindMemberships(ctx, userID, clinicID)
	if err != nil {
		return false, fmt.Errorf("lookup memberships: %w", err)
	}

	for _, m := range memberships {
		if m.Disabled || !m.Contains(at) {
			continue
		}
		for _, role := range allowedRoles {
			if m.Role == role {
				return true, nil
			}
		}
	}
	return false, nil
}
