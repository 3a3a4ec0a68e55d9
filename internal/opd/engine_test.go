package opd

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock that advances by one second per call.
func stepClock() func() time.Time {
	t := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestDoctor(capacity int) *Doctor {
	return &Doctor{
		ID:        "d1",
		Name:      "Dr. Arnab",
		Specialty: "General Physician",
		Slots: []TimeSlot{
			{ID: "d1-s1", StartTime: "09:00", EndTime: "10:00", Capacity: capacity},
			{ID: "d1-s2", StartTime: "10:00", EndTime: "11:00", Capacity: capacity},
		},
	}
}

func names(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Patient.Name
	}
	return out
}

func mustAllocate(t *testing.T, e *Engine, d *Doctor, slotID, name string, class PriorityClass) (*Doctor, *Token) {
	t.Helper()
	next, tok, err := e.Allocate(d, slotID, name, class)
	require.NoError(t, err)
	require.NotNil(t, tok)
	return next, tok
}

func TestAllocate_CapacityLimit(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(2)

	d, a := mustAllocate(t, e, d, "d1-s1", "A", WalkIn)
	d, b := mustAllocate(t, e, d, "d1-s1", "B", WalkIn)
	assert.Equal(t, 1, a.Sequence)
	assert.Equal(t, 2, b.Sequence)

	next, tok, err := e.Allocate(d, "d1-s1", "C", WalkIn)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Same(t, d, next)
	assert.Nil(t, tok)
	assert.Len(t, d.Slots[0].Tokens, 2)
}

func TestAllocate_EmergencyOverbooks(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(2)

	d, _ = mustAllocate(t, e, d, "d1-s1", "A", WalkIn)
	d, _ = mustAllocate(t, e, d, "d1-s1", "B", WalkIn)
	d, em := mustAllocate(t, e, d, "d1-s1", "D", Emergency)

	assert.Equal(t, 3, em.Sequence)
	assert.Equal(t, []string{"D", "A", "B"}, names(d.Slots[0].Tokens))
	assert.Equal(t, 3, d.Slots[0].ActiveCount())
}

func TestAllocate_OrdersByRank(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(5)

	d, _ = mustAllocate(t, e, d, "d1-s1", "X", FollowUp)
	d, _ = mustAllocate(t, e, d, "d1-s1", "Y", PaidPriority)

	assert.Equal(t, []string{"Y", "X"}, names(d.Slots[0].Tokens))
}

func TestAllocate_TieBreakByBookingTime(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(5)

	d, a := mustAllocate(t, e, d, "d1-s1", "A", WalkIn)
	d, b := mustAllocate(t, e, d, "d1-s1", "B", WalkIn)

	assert.True(t, a.BookedAt.Before(b.BookedAt))
	assert.Equal(t, []string{"A", "B"}, names(d.Slots[0].Tokens))
}

func TestAllocate_StalledClockKeepsCreationOrder(t *testing.T) {
	fixed := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return fixed }))
	d := newTestDoctor(5)

	d, a := mustAllocate(t, e, d, "d1-s1", "A", Online)
	d, b := mustAllocate(t, e, d, "d1-s1", "B", Online)
	d, c := mustAllocate(t, e, d, "d1-s1", "C", Online)

	assert.True(t, a.BookedAt.Before(b.BookedAt))
	assert.True(t, b.BookedAt.Before(c.BookedAt))
	assert.Equal(t, []string{"A", "B", "C"}, names(d.Slots[0].Tokens))
}

func TestAllocate_SlotNotFound(t *testing.T) {
	e := NewEngine()
	d := newTestDoctor(2)

	next, tok, err := e.Allocate(d, "nope", "A", WalkIn)
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.Same(t, d, next)
	assert.Nil(t, tok)
}

func TestAllocate_UnknownPriority(t *testing.T) {
	e := NewEngine()
	_, _, err := e.Allocate(newTestDoctor(2), "d1-s1", "A", PriorityClass("VIP"))
	assert.ErrorIs(t, err, ErrUnknownPriority)
}

func TestAllocate_TokenFields(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(2)

	next, tok := mustAllocate(t, e, d, "d1-s2", "Asha", Online)

	assert.NotEqual(t, uuid.Nil, tok.ID)
	assert.NotEqual(t, uuid.Nil, tok.Patient.ID)
	assert.NotEqual(t, tok.ID, tok.Patient.ID)
	assert.Equal(t, "Asha", tok.Patient.Name)
	assert.Equal(t, Online, tok.Patient.Priority)
	assert.Equal(t, StatusBooked, tok.Status)
	assert.Equal(t, "d1-s2", tok.SlotID)
	assert.Empty(t, next.Slots[0].Tokens)
	require.Len(t, next.Slots[1].Tokens, 1)
	assert.Equal(t, *tok, next.Slots[1].Tokens[0])
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d, _ := mustAllocate(t, e, newTestDoctor(3), "d1-s1", "A", WalkIn)
	before := d.Clone()

	next, _ := mustAllocate(t, e, d, "d1-s1", "B", Emergency)

	assert.Equal(t, before, d)
	assert.NotSame(t, d, next)

	next.Slots[0].Tokens[1].Status = StatusNoShow
	next.Slots[0].Tokens[1].Patient.Name = "changed"
	next.Slots[1].Capacity = 99
	assert.Equal(t, before, d)
}

func TestSequenceNumbersSurviveCancellation(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(2)

	d, a := mustAllocate(t, e, d, "d1-s1", "A", WalkIn)
	d, _ = mustAllocate(t, e, d, "d1-s1", "B", WalkIn)

	d, found := e.Cancel(d, a.ID)
	require.True(t, found)

	d, c := mustAllocate(t, e, d, "d1-s1", "C", WalkIn)
	assert.Equal(t, 3, c.Sequence)

	seen := map[int]bool{}
	for _, tok := range d.Slots[0].Tokens {
		assert.False(t, seen[tok.Sequence], "sequence %d reused", tok.Sequence)
		seen[tok.Sequence] = true
	}
}

func TestCancel_KeepsPositionAndFreesCapacity(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(2)

	d, a := mustAllocate(t, e, d, "d1-s1", "A", PaidPriority)
	d, _ = mustAllocate(t, e, d, "d1-s1", "B", WalkIn)
	require.False(t, d.Slots[0].CanAllocate())

	next, found := e.Cancel(d, a.ID)
	require.True(t, found)

	assert.Equal(t, []string{"A", "B"}, names(next.Slots[0].Tokens))
	assert.Equal(t, StatusCancelled, next.Slots[0].Tokens[0].Status)
	assert.Equal(t, 1, next.Slots[0].ActiveCount())
	assert.True(t, next.Slots[0].CanAllocate())

	// input untouched
	assert.Equal(t, StatusBooked, d.Slots[0].Tokens[0].Status)
}

func TestCancel_UnknownTokenIsNoop(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d, _ := mustAllocate(t, e, newTestDoctor(2), "d1-s1", "A", WalkIn)

	next, found := e.Cancel(d, uuid.New())
	assert.False(t, found)
	assert.Equal(t, d, next)
	assert.NotSame(t, d, next)
}

func TestCancel_Idempotent(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(3)
	d, a := mustAllocate(t, e, d, "d1-s1", "A", Online)
	d, _ = mustAllocate(t, e, d, "d1-s1", "B", FollowUp)

	once, found := e.Cancel(d, a.ID)
	require.True(t, found)
	twice, found := e.Cancel(once, a.ID)
	require.True(t, found)

	assert.Equal(t, once, twice)
}

func TestCancel_OnlyTouchesOwningSlot(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(2)
	d, a := mustAllocate(t, e, d, "d1-s1", "A", WalkIn)
	d, _ = mustAllocate(t, e, d, "d1-s2", "B", WalkIn)

	next, _ := e.Cancel(d, a.ID)
	assert.Equal(t, d.Slots[1], next.Slots[1])
}

func TestApply_Transitions(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d, tok := mustAllocate(t, e, newTestDoctor(2), "d1-s1", "A", WalkIn)

	d, got, err := e.Apply(d, tok.ID, ActionCheckIn)
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, got.Status)

	unchanged, _, err := e.Apply(d, tok.ID, ActionCheckIn)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Same(t, d, unchanged)

	d, got, err = e.Apply(d, tok.ID, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, d.Slots[0].ActiveCount())

	unchanged, _, err = e.Apply(d, uuid.New(), ActionComplete)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.Same(t, d, unchanged)
}

func TestApply_NoShowFreesCapacity(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(1)
	d, tok := mustAllocate(t, e, d, "d1-s1", "A", Online)
	require.False(t, d.Slots[0].CanAllocate())

	next, got, err := e.Apply(d, tok.ID, ActionNoShow)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
	assert.True(t, next.Slots[0].CanAllocate())
	assert.Equal(t, StatusBooked, d.Slots[0].Tokens[0].Status)
}

// Mixed workload: ordering and capacity invariants hold after every step.
func TestInvariantsUnderMixedOperations(t *testing.T) {
	e := NewEngine(WithClock(stepClock()))
	d := newTestDoctor(3)

	classes := []PriorityClass{WalkIn, Online, Emergency, FollowUp, PaidPriority, WalkIn, Online, Emergency}
	var ids []uuid.UUID
	for i, c := range classes {
		next, tok, err := e.Allocate(d, "d1-s1", string(rune('A'+i)), c)
		if err != nil {
			require.ErrorIs(t, err, ErrCapacityExceeded)
			require.NotEqual(t, Emergency, c)
		} else {
			d = next
			ids = append(ids, tok.ID)
		}
		if i%3 == 2 && len(ids) > 0 {
			d, _ = e.Cancel(d, ids[0])
			ids = ids[1:]
		}
		assertOrdered(t, d.Slots[0].Tokens)
	}
}

func assertOrdered(t *testing.T, tokens []Token) {
	t.Helper()
	for i := 1; i < len(tokens); i++ {
		a, b := tokens[i-1], tokens[i]
		ra, _ := Rank(a.Patient.Priority)
		rb, _ := Rank(b.Patient.Priority)
		require.LessOrEqual(t, ra, rb)
		if ra == rb {
			require.False(t, b.BookedAt.Before(a.BookedAt))
		}
	}
}
