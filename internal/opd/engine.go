// Package opd holds the OPD token allocation engine: admission to a slot,
// sequence numbering and priority ordering of a doctor's tokens.
//
// Every operation takes a doctor snapshot and returns a new one. Inputs are
// never mutated, so callers may keep the pre-call snapshot and compare it with
// the result. The engine does no locking; callers serialize writes per doctor.
package opd

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type Engine struct {
	newID func() uuid.UUID
	now   func() time.Time
}

type Option func(*Engine)

// WithClock replaces the wall clock used for booking timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator replaces the token/patient id source.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		newID: uuid.New,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Allocate books a new token for patientName in the given slot.
// Non-emergency patients are refused once the slot's active tokens reach
// capacity; emergencies are always admitted. On error d is returned as is.
func (e *Engine) Allocate(d *Doctor, slotID, patientName string, class PriorityClass) (*Doctor, *Token, error) {
	if !class.Valid() {
		return d, nil, fmt.Errorf("%w: %q", ErrUnknownPriority, class)
	}

	idx := d.Slot(slotID)
	if idx == -1 {
		return d, nil, ErrSlotNotFound
	}

	if class != Emergency && !d.Slots[idx].CanAllocate() {
		return d, nil, ErrCapacityExceeded
	}

	next := d.Clone()
	slot := &next.Slots[idx]

	token := Token{
		ID:       e.newID(),
		Sequence: slot.NextSequence(),
		Patient: Patient{
			ID:       e.newID(),
			Name:     patientName,
			Priority: class,
		},
		Status:   StatusBooked,
		SlotID:   slot.ID,
		BookedAt: e.bookingTime(slot),
	}

	slot.Tokens = append(slot.Tokens, token)
	SortTokens(slot.Tokens)

	return next, &token, nil
}

// Cancel marks the token as cancelled and re-sorts its slot. An unknown token
// id is not an error: the returned snapshot is an unchanged copy and found is
// false.
func (e *Engine) Cancel(d *Doctor, tokenID uuid.UUID) (next *Doctor, found bool) {
	next = d.Clone()

	si, ti, ok := next.FindToken(tokenID)
	if !ok {
		return next, false
	}

	slot := &next.Slots[si]
	slot.Tokens[ti].Status = StatusCancelled
	SortTokens(slot.Tokens)

	return next, true
}

// Apply moves a token through an administrative transition (check-in,
// complete, no-show) and re-sorts its slot.
func (e *Engine) Apply(d *Doctor, tokenID uuid.UUID, action Action) (*Doctor, *Token, error) {
	si, ti, ok := d.FindToken(tokenID)
	if !ok {
		return d, nil, ErrTokenNotFound
	}

	current := d.Slots[si].Tokens[ti].Status
	to, ok := Transition(action, current)
	if !ok {
		return d, nil, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, current)
	}

	next := d.Clone()
	slot := &next.Slots[si]
	slot.Tokens[ti].Status = to
	updated := slot.Tokens[ti]
	SortTokens(slot.Tokens)

	return next, &updated, nil
}

// bookingTime returns a timestamp strictly later than every token already in
// the slot, so tie-breaks follow creation order even when the clock stalls or
// steps backwards.
func (e *Engine) bookingTime(slot *TimeSlot) time.Time {
	at := e.now().UTC()
	for _, t := range slot.Tokens {
		if !at.After(t.BookedAt) {
			at = t.BookedAt.Add(time.Nanosecond)
		}
	}
	return at
}

// SortTokens orders tokens by priority rank, then by booking time.
// Cancelled and no-show tokens keep their position under the same rule.
func SortTokens(tokens []Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokenLess(tokens[i], tokens[j])
	})
}

func tokenLess(a, b Token) bool {
	ra, _ := Rank(a.Patient.Priority)
	rb, _ := Rank(b.Patient.Priority)
	if ra != rb {
		return ra < rb
	}
	return a.BookedAt.Before(b.BookedAt)
}
