package scheduling

import "time"

// TimeSlot is an immutable start instant plus a duration in minutes. All
// instants are UTC.
type TimeSlot struct {
	StartsAt        time.Time
	DurationMinutes int
}

func NewTimeSlot(startsAt time.Time, durationMinutes int) (TimeSlot, error) {
	if durationMinutes <= 0 {
		return TimeSlot{}, ErrInvalidSlot
	}
	return TimeSlot{StartsAt: startsAt.UTC(), DurationMinutes: durationMinutes}, nil
}

func (s TimeSlot) End() time.Time {
	return s.StartsAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Overlaps uses half-open interval semantics: a slot ending exactly when
// another starts does not conflict with it.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.StartsAt.Before(other.End()) && other.StartsAt.Before(s.End())
}
