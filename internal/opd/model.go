package opd

import (
	"time"

	"github.com/google/uuid"
)

type TokenStatus string

const (
	StatusBooked    TokenStatus = "BOOKED"
	StatusCheckedIn TokenStatus = "CHECKED_IN"
	StatusCompleted TokenStatus = "COMPLETED"
	StatusCancelled TokenStatus = "CANCELLED"
	StatusNoShow    TokenStatus = "NO_SHOW"
)

// Active reports whether a token with this status holds a place in its slot.
func (s TokenStatus) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

type Patient struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Priority PriorityClass `json:"type"`
}

type Token struct {
	ID       uuid.UUID   `json:"id"`
	Sequence int         `json:"tokenId"`
	Patient  Patient     `json:"patient"`
	Status   TokenStatus `json:"status"`
	SlotID   string      `json:"slotId"`
	BookedAt time.Time   `json:"bookedAt"`
}

type TimeSlot struct {
	ID        string  `json:"id" yaml:"id"`
	StartTime string  `json:"startTime" yaml:"start_time"`
	EndTime   string  `json:"endTime" yaml:"end_time"`
	Capacity  int     `json:"capacity" yaml:"capacity"`
	Tokens    []Token `json:"tokens" yaml:"-"`
}

// ActiveCount counts tokens that are neither cancelled nor no-show.
func (s *TimeSlot) ActiveCount() int {
	n := 0
	for _, t := range s.Tokens {
		if t.Status.Active() {
			n++
		}
	}
	return n
}

// CanAllocate reports whether a non-emergency patient still fits.
func (s *TimeSlot) CanAllocate() bool {
	return s.ActiveCount() < s.Capacity
}

// NextSequence is the sequence number the next token created in the slot gets.
// Cancelled and no-show tokens stay in the slot so numbers are never reused.
func (s *TimeSlot) NextSequence() int {
	return len(s.Tokens) + 1
}

func (s *TimeSlot) clone() TimeSlot {
	c := *s
	if s.Tokens != nil {
		c.Tokens = make([]Token, len(s.Tokens))
		copy(c.Tokens, s.Tokens)
	}
	return c
}

type Doctor struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Specialty string     `json:"specialty" yaml:"specialty"`
	Slots     []TimeSlot `json:"slots" yaml:"slots"`
}

// Clone returns a deep copy that shares no slices with d.
func (d *Doctor) Clone() *Doctor {
	if d == nil {
		return nil
	}
	c := *d
	if d.Slots != nil {
		c.Slots = make([]TimeSlot, len(d.Slots))
		for i := range d.Slots {
			c.Slots[i] = d.Slots[i].clone()
		}
	}
	return &c
}

// Slot returns the index of the slot with the given id, or -1.
func (d *Doctor) Slot(slotID string) int {
	for i := range d.Slots {
		if d.Slots[i].ID == slotID {
			return i
		}
	}
	return -1
}

// FindToken locates a token by id across all slots.
func (d *Doctor) FindToken(tokenID uuid.UUID) (slotIdx, tokenIdx int, ok bool) {
	for i := range d.Slots {
		for j := range d.Slots[i].Tokens {
			if d.Slots[i].Tokens[j].ID == tokenID {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// Capacity sums the nominal capacity of all slots.
func (d *Doctor) Capacity() int {
	total := 0
	for _, s := range d.Slots {
		total += s.Capacity
	}
	return total
}

// Booked counts tokens that are not cancelled, across all slots.
func (d *Doctor) Booked() int {
	total := 0
	for _, s := range d.Slots {
		for _, t := range s.Tokens {
			if t.Status != StatusCancelled {
				total++
			}
		}
	}
	return total
}
