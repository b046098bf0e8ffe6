package scheduling

import "errors"

var (
	ErrInvalidSlot             = errors.New("slot duration must be a positive number of minutes")
	ErrOwnerNotFound           = errors.New("owner not found")
	ErrAnimalNotFound          = errors.New("animal not found")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrPractitionerNotEligible = errors.New("practitioner is not eligible for this clinic at the requested time")
	ErrSlotConflict            = errors.New("practitioner already has an overlapping appointment")
	ErrSlotBeingBooked         = errors.New("practitioner agenda is being modified, please retry")
	ErrNoPractitionerAssigned  = errors.New("appointment has no practitioner assigned")
	ErrInvalidTransition       = errors.New("invalid appointment status transition")
)
