package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
)

type AllocateTokenRequest struct {
	DoctorID    string `json:"doctorId"`
	SlotID      string `json:"slotId"`
	PatientName string `json:"patientName"`
	Type        string `json:"type"`
}

type AllocateTokenResponse struct {
	Token    opd.Token   `json:"token"`
	Schedule *opd.Doctor `json:"schedule"`
}

type CancelTokenResponse struct {
	ID        string      `json:"id"`
	Cancelled bool        `json:"cancelled"`
	Schedule  *opd.Doctor `json:"schedule,omitempty"`
}

type EventResponse struct {
	ID        int64           `json:"id"`
	EventType string          `json:"eventType"`
	DoctorID  string          `json:"doctorId"`
	TokenID   *uuid.UUID      `json:"tokenId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
