package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
)

func TestMemoryStore_GetPutCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(DefaultRoster())

	d, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Arnab", d.Name)

	d.Slots[0].Capacity = 100
	again, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Slots[0].Capacity)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestMemoryStore_TokenIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(DefaultRoster())
	e := opd.NewEngine()

	d, err := s.Get(ctx, "d2")
	require.NoError(t, err)
	next, tok, err := e.Allocate(d, "d2-s1", "Meera", opd.FollowUp)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, next))

	id, ok, err := s.DoctorForToken(ctx, tok.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "d2", id)

	_, ok, err = s.DoctorForToken(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ListKeepsInsertionOrder(t *testing.T) {
	s := NewMemoryStore(DefaultRoster())
	list, err := s.List(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"d1", "d2", "d3"}, ids)
}

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster()
	require.Len(t, roster, 3)
	for _, d := range roster {
		assert.Len(t, d.Slots, 3)
	}
	assert.Equal(t, "d3-s2", roster[2].Slots[1].ID)
	assert.Equal(t, 18, roster[2].Capacity())
	assert.NoError(t, validateRoster(roster))
}

func TestLoadRoster(t *testing.T) {
	data := []byte(`
doctors:
  - id: ortho
    name: Dr. Kavya
    specialty: Orthopaedics
    slots:
      - id: ortho-am
        start_time: "08:00"
        end_time: "09:30"
        capacity: 8
      - id: ortho-pm
        start_time: "14:00"
        end_time: "15:00"
        capacity: 0
`)
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	doctors, err := LoadRoster(path)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr. Kavya", doctors[0].Name)
	require.Len(t, doctors[0].Slots, 2)
	assert.Equal(t, "08:00", doctors[0].Slots[0].StartTime)
	assert.Equal(t, 8, doctors[0].Slots[0].Capacity)
}

func TestParseRoster_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          `doctors: []`,
		"missing id":     "doctors:\n  - name: x\n",
		"duplicate":      "doctors:\n  - id: a\n  - id: a\n",
		"duplicate slot": "doctors:\n  - id: a\n    slots:\n      - id: s\n      - id: s\n",
		"negative":       "doctors:\n  - id: a\n    slots:\n      - id: s\n        capacity: -1\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoster([]byte(in))
			assert.ErrorIs(t, err, ErrInvalidRoster)
		})
	}

	_, err := ParseRoster([]byte("doctors: ["))
	assert.Error(t, err)
}

func TestMarshalRosterRoundTrip(t *testing.T) {
	roster := DefaultRoster()
	roster[0].Slots[0].Tokens = []opd.Token{{Sequence: 1}}

	data, err := MarshalRoster(roster)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "tokens")

	back, err := ParseRoster(data)
	require.NoError(t, err)
	require.Len(t, back, 3)
	assert.Equal(t, "Kid's Specialist", back[1].Specialty)
	assert.Empty(t, back[0].Slots[0].Tokens)
	assert.Equal(t, roster[2].Capacity(), back[2].Capacity())

	_, err = MarshalRoster(nil)
	assert.ErrorIs(t, err, ErrInvalidRoster)
}
