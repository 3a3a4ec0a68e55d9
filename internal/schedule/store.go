// Package schedule keeps the current doctor snapshots between engine calls.
package schedule

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Store holds one snapshot per doctor. Snapshots handed out and accepted are
// owned by the caller afterwards; implementations copy on the way in and out.
type Store interface {
	Get(ctx context.Context, doctorID string) (*opd.Doctor, error)
	Put(ctx context.Context, d *opd.Doctor) error
	List(ctx context.Context) ([]*opd.Doctor, error)

	// DoctorForToken returns the id of the doctor whose schedule holds the token.
	DoctorForToken(ctx context.Context, tokenID uuid.UUID) (string, bool, error)
}

// MemoryStore is an in-process Store. State is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	doctors map[string]*opd.Doctor
	order   []string
	tokens  map[uuid.UUID]string
}

func NewMemoryStore(roster []*opd.Doctor) *MemoryStore {
	s := &MemoryStore{
		doctors: make(map[string]*opd.Doctor),
		tokens:  make(map[uuid.UUID]string),
	}
	for _, d := range roster {
		_ = s.Put(context.Background(), d)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, doctorID string) (*opd.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.doctors[doctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, d *opd.Doctor) error {
	if d == nil {
		return nil
	}
	c := d.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doctors[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.doctors[c.ID] = c
	for _, slot := range c.Slots {
		for _, t := range slot.Tokens {
			s.tokens[t.ID] = c.ID
		}
	}
	return nil
}

// List returns doctors in the order they were first stored.
func (s *MemoryStore) List(_ context.Context) ([]*opd.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*opd.Doctor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.doctors[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) DoctorForToken(_ context.Context, tokenID uuid.UUID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokens[tokenID]
	return id, ok, nil
}

