package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/schedule"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/token"
)

func allocateTokenHandler(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AllocateTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.DoctorID == "" || req.SlotID == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "doctorId and slotId are required")
			return
		}

		priority, err := opd.ParsePriorityClass(req.Type)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
			return
		}

		res, err := svc.Allocate(r.Context(), token.AllocateRequest{
			DoctorID:    req.DoctorID,
			SlotID:      req.SlotID,
			PatientName: req.PatientName,
			Priority:    priority,
		})
		if err != nil {
			handleTokenError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, AllocateTokenResponse{
			Token:    res.Token,
			Schedule: res.Schedule,
		})
	}
}

// cancelTokenHandler always answers 200: cancelling an unknown token is a no-op.
func cancelTokenHandler(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		resp := CancelTokenResponse{ID: idStr}

		id, err := uuid.Parse(idStr)
		if err != nil {
			writeJSON(w, http.StatusOK, resp)
			return
		}

		snap, found, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleTokenError(w, err)
			return
		}

		resp.Cancelled = found
		resp.Schedule = snap
		writeJSON(w, http.StatusOK, resp)
	}
}

// transitionTokenHandler serves check-in, complete and no-show; action is the
// matching TokenService method.
func transitionTokenHandler(action func(ctx context.Context, id uuid.UUID) (*opd.Token, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "token_not_found", opd.ErrTokenNotFound.Error())
			return
		}

		tok, err := action(r.Context(), id)
		if err != nil {
			handleTokenError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, tok)
	}
}

func tokenEventsHandler(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_token_id", "id must be a valid UUID")
			return
		}

		events, err := svc.Events(r.Context(), id)
		if err != nil {
			handleTokenError(w, err)
			return
		}

		resp := make([]EventResponse, 0, len(events))
		for _, ev := range events {
			resp = append(resp, EventResponse{
				ID:        ev.ID,
				EventType: ev.EventType,
				DoctorID:  ev.DoctorID,
				TokenID:   ev.TokenID,
				Payload:   json.RawMessage(ev.Payload),
				CreatedAt: ev.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func scheduleHandler(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Schedule(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleTokenError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func listDoctorsHandler(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.Doctors(r.Context())
		if err != nil {
			handleTokenError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doctors)
	}
}

func statsHandler(svc TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			handleTokenError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, token.ErrEmptyPatientName):
		writeError(w, http.StatusBadRequest, "missing_patient_name", err.Error())
	case errors.Is(err, opd.ErrUnknownPriority):
		writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", "Doctor not found")
	case errors.Is(err, opd.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", "Slot not found")
	case errors.Is(err, opd.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", "Slot is at maximum capacity")
	case errors.Is(err, opd.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "token_not_found", err.Error())
	case errors.Is(err, opd.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, token.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_busy", err.Error())
	case errors.Is(err, token.ErrEventsUnavailable):
		writeError(w, http.StatusNotImplemented, "events_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
