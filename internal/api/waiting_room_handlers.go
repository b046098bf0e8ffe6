package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/vetdesk/clinical-scheduling/internal/scheduling"
	"github.com/vetdesk/clinical-scheduling/internal/waitingroom"
)

// WaitingRoomService is the slice of the waiting room orchestrator the handlers use.
type WaitingRoomService interface {
	CheckInAppointment(ctx context.Context, cmd waitingroom.CheckInCommand) (*waitingroom.Entry, error)
	CreateWalkIn(ctx context.Context, cmd waitingroom.WalkInCommand) (*waitingroom.Entry, error)
	Call(ctx context.Context, entryID, byUserID uuid.UUID) (*waitingroom.Entry, error)
	StartService(ctx context.Context, entryID, byUserID uuid.UUID) (*waitingroom.Entry, error)
	Close(ctx context.Context, entryID, byUserID uuid.UUID) (*waitingroom.Entry, error)
	UpdateTriage(ctx context.Context, cmd waitingroom.TriageCommand) (*waitingroom.Entry, error)
	LinkOwnerAndAnimal(ctx context.Context, entryID uuid.UUID, ownerID, animalID *uuid.UUID) (*waitingroom.Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*waitingroom.Entry, error)
	ListQueue(ctx context.Context, clinicID uuid.UUID) ([]*waitingroom.Entry, error)
}

func checkInHandler(svc WaitingRoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, ok := parsePathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		mode, ok := parseArrivalMode(w, req.ArrivalMode)
		if !ok {
			return
		}

		entry, err := svc.CheckInAppointment(r.Context(), waitingroom.CheckInCommand{
			AppointmentID: appointmentID,
			ArrivalMode:   mode,
			Priority:      req.Priority,
		})
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntryResponse(entry))
	}
}

func createWalkInHandler(svc WaitingRoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WalkInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}
		ownerID, err := parseOptionalUUID(req.OwnerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "owner_id must be a valid UUID")
			return
		}
		animalID, err := parseOptionalUUID(req.AnimalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_animal_id", "animal_id must be a valid UUID")
			return
		}
		mode, ok := parseArrivalMode(w, req.ArrivalMode)
		if !ok {
			return
		}

		entry, err := svc.CreateWalkIn(r.Context(), waitingroom.WalkInCommand{
			ClinicID:               clinicID,
			OwnerID:                ownerID,
			AnimalID:               animalID,
			FoundAnimalDescription: req.FoundAnimalDescription,
			ArrivalMode:            mode,
			Priority:               req.Priority,
			TriageNotes:            req.TriageNotes,
		})
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntryResponse(entry))
	}
}

func getEntryHandler(svc WaitingRoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r, "invalid_entry_id")
		if !ok {
			return
		}

		entry, err := svc.GetEntry(r.Context(), id)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func listQueueHandler(svc WaitingRoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, err := uuid.Parse(r.URL.Query().Get("clinic_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id query parameter must be a valid UUID")
			return
		}

		entries, err := svc.ListQueue(r.Context(), clinicID)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}

		resp := make([]WaitingRoomEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type staffAction func(ctx context.Context, entryID, byUserID uuid.UUID) (*waitingroom.Entry, error)

func staffActionHandler(action staffAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r, "invalid_entry_id")
		if !ok {
			return
		}

		var req StaffActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		byUserID, err := uuid.Parse(req.ByUserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_by_user_id", "by_user_id must be a valid UUID")
			return
		}

		entry, err := action(r.Context(), id, byUserID)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func updateTriageHandler(svc WaitingRoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r, "invalid_entry_id")
		if !ok {
			return
		}

		var req TriageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		mode, ok := parseArrivalMode(w, req.ArrivalMode)
		if !ok {
			return
		}

		entry, err := svc.UpdateTriage(r.Context(), waitingroom.TriageCommand{
			EntryID:     id,
			Priority:    req.Priority,
			TriageNotes: req.TriageNotes,
			ArrivalMode: mode,
		})
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func linkOwnerAndAnimalHandler(svc WaitingRoomService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parsePathID(w, r, "invalid_entry_id")
		if !ok {
			return
		}

		var req LinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		ownerID, err := parseOptionalUUID(req.OwnerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_owner_id", "owner_id must be a valid UUID")
			return
		}
		animalID, err := parseOptionalUUID(req.AnimalID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_animal_id", "animal_id must be a valid UUID")
			return
		}

		entry, err := svc.LinkOwnerAndAnimal(r.Context(), id, ownerID, animalID)
		if err != nil {
			handleWaitingRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	}
}

func handleWaitingRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, waitingroom.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "entry_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, waitingroom.ErrAlreadyCheckedIn):
		writeError(w, http.StatusConflict, "appointment_already_checked_in", err.Error())
	case errors.Is(err, waitingroom.ErrAppointmentNotOpen):
		writeError(w, http.StatusConflict, "appointment_not_open", err.Error())
	case errors.Is(err, waitingroom.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, waitingroom.ErrEntryModified):
		writeError(w, http.StatusConflict, "entry_modified", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseArrivalMode(w http.ResponseWriter, s string) (waitingroom.ArrivalMode, bool) {
	switch waitingroom.ArrivalMode(s) {
	case waitingroom.ArrivalStandard, waitingroom.ArrivalEmergency:
		return waitingroom.ArrivalMode(s), true
	case "":
		return waitingroom.ArrivalStandard, true
	default:
		writeError(w, http.StatusBadRequest, "invalid_arrival_mode", "arrival_mode must be standard or emergency")
		return "", false
	}
}
