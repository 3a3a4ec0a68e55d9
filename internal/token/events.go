package token

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventTokenAllocated = "TOKEN_ALLOCATED"
	EventTokenCancelled = "TOKEN_CANCELLED"
	EventTokenCheckedIn = "TOKEN_CHECKED_IN"
	EventTokenCompleted = "TOKEN_COMPLETED"
	EventTokenNoShow    = "TOKEN_NO_SHOW"
)

type Event struct {
	ID        int64
	EventType string
	DoctorID  string
	TokenID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// EventSink receives the audit trail of schedule changes. Failures are logged
// by the service and never fail the operation that produced the event.
type EventSink interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) InsertEvent(_ context.Context, ev Event) error {
	tokenID := ""
	if ev.TokenID != nil {
		tokenID = ev.TokenID.String()
	}
	log.Printf("event=%s doctor_id=%s token_id=%s payload=%s", ev.EventType, ev.DoctorID, tokenID, ev.Payload)
	return nil
}

// EventReader is implemented by sinks that can replay a token's history.
type EventReader interface {
	ListTokenEvents(ctx context.Context, tokenID uuid.UUID) ([]Event, error)
}

// MemorySink logs every event and keeps it in memory for replay.
type MemorySink struct {
	LogSink

	mu     sync.RWMutex
	nextID int64
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) InsertEvent(ctx context.Context, ev Event) error {
	m.mu.Lock()
	m.nextID++
	ev.ID = m.nextID
	m.events = append(m.events, ev)
	m.mu.Unlock()

	return m.LogSink.InsertEvent(ctx, ev)
}

func (m *MemorySink) ListTokenEvents(_ context.Context, tokenID uuid.UUID) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, ev := range m.events {
		if ev.TokenID != nil && *ev.TokenID == tokenID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Service) logEvent(ctx context.Context, doctorID string, tokenID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	id := tokenID

	ev := Event{
		EventType: eventType,
		DoctorID:  doctorID,
		TokenID:   &id,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := s.events.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for token %s: %v", eventType, tokenID, err)
	}
}
