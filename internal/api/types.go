package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/clinical-scheduling/internal/scheduling"
	"github.com/vetdesk/clinical-scheduling/internal/waitingroom"
)

type ScheduleAppointmentRequest struct {
	ClinicID        string  `json:"clinic_id"`
	OwnerID         *string `json:"owner_id,omitempty"`
	AnimalID        *string `json:"animal_id,omitempty"`
	PractitionerID  *string `json:"practitioner_id,omitempty"`
	StartsAt        string  `json:"starts_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Reason          *string `json:"reason,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type AssignPractitionerRequest struct {
	PractitionerID string `json:"practitioner_id"`
}

type AppointmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	ClinicID         uuid.UUID  `json:"clinic_id"`
	OwnerID          *uuid.UUID `json:"owner_id,omitempty"`
	AnimalID         *uuid.UUID `json:"animal_id,omitempty"`
	PractitionerID   *uuid.UUID `json:"practitioner_id,omitempty"`
	StartsAt         time.Time  `json:"starts_at"`
	DurationMinutes  int        `json:"duration_minutes"`
	EndsAt           time.Time  `json:"ends_at"`
	Status           string     `json:"status"`
	Reason           *string    `json:"reason,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	ServiceStartedAt *time.Time `json:"service_started_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		ClinicID:         a.ClinicID,
		OwnerID:          a.OwnerID,
		AnimalID:         a.AnimalID,
		PractitionerID:   a.Practitioner,
		StartsAt:         a.Slot.StartsAt,
		DurationMinutes:  a.Slot.DurationMinutes,
		EndsAt:           a.Slot.End(),
		Status:           string(a.Status),
		Reason:           a.Reason,
		Notes:            a.Notes,
		ServiceStartedAt: a.ServiceStartedAt,
		CreatedAt:        a.CreatedAt,
	}
}

type CheckInRequest struct {
	ArrivalMode string `json:"arrival_mode"`
	Priority    int    `json:"priority"`
}

type WalkInRequest struct {
	ClinicID               string  `json:"clinic_id"`
	OwnerID                *string `json:"owner_id,omitempty"`
	AnimalID               *string `json:"animal_id,omitempty"`
	FoundAnimalDescription *string `json:"found_animal_description,omitempty"`
	ArrivalMode            string  `json:"arrival_mode"`
	Priority               int     `json:"priority"`
	TriageNotes            *string `json:"triage_notes,omitempty"`
}

type StaffActionRequest struct {
	ByUserID string `json:"by_user_id"`
}

type TriageRequest struct {
	Priority    int     `json:"priority"`
	TriageNotes *string `json:"triage_notes,omitempty"`
	ArrivalMode string  `json:"arrival_mode"`
}

type LinkRequest struct {
	OwnerID  *string `json:"owner_id,omitempty"`
	AnimalID *string `json:"animal_id,omitempty"`
}

type WaitingRoomEntryResponse struct {
	ID                     uuid.UUID  `json:"id"`
	ClinicID               uuid.UUID  `json:"clinic_id"`
	Origin                 string     `json:"origin"`
	ArrivalMode            string     `json:"arrival_mode"`
	LinkedAppointmentID    *uuid.UUID `json:"linked_appointment_id,omitempty"`
	OwnerID                *uuid.UUID `json:"owner_id,omitempty"`
	AnimalID               *uuid.UUID `json:"animal_id,omitempty"`
	FoundAnimalDescription *string    `json:"found_animal_description,omitempty"`
	Priority               int        `json:"priority"`
	TriageNotes            *string    `json:"triage_notes,omitempty"`
	Status                 string     `json:"status"`
	ArrivedAt              time.Time  `json:"arrived_at"`
	CalledAt               *time.Time `json:"called_at,omitempty"`
	ServiceStartedAt       *time.Time `json:"service_started_at,omitempty"`
	ClosedAt               *time.Time `json:"closed_at,omitempty"`
}

func toEntryResponse(e *waitingroom.Entry) WaitingRoomEntryResponse {
	return WaitingRoomEntryResponse{
		ID:                     e.ID,
		ClinicID:               e.ClinicID,
		Origin:                 string(e.Origin),
		ArrivalMode:            string(e.ArrivalMode),
		LinkedAppointmentID:    e.LinkedAppointmentID,
		OwnerID:                e.OwnerID,
		AnimalID:               e.AnimalID,
		FoundAnimalDescription: e.FoundAnimalDescription,
		Priority:               e.Priority,
		TriageNotes:            e.TriageNotes,
		Status:                 string(e.Status),
		ArrivedAt:              e.ArrivedAt,
		CalledAt:               e.CalledAt,
		ServiceStartedAt:       e.ServiceStartedAt,
		ClosedAt:               e.ClosedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
