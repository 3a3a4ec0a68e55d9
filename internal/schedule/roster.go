package schedule

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
)

var ErrInvalidRoster = errors.New("invalid roster")

type rosterFile struct {
	Doctors []*opd.Doctor `yaml:"doctors"`
}

// DefaultRoster is the OPD used when no roster file is configured:
// three doctors, three hourly morning slots each.
func DefaultRoster() []*opd.Doctor {
	return []*opd.Doctor{
		newDoctor("d1", "Dr. Arnab", "General Physician", 5),
		newDoctor("d2", "Dr. Priya", "Kid's Specialist", 4),
		newDoctor("d3", "Dr. Rahul", "Bone Specialist", 6),
	}
}

func newDoctor(id, name, specialty string, capacity int) *opd.Doctor {
	hours := [][2]string{{"09:00", "10:00"}, {"10:00", "11:00"}, {"11:00", "12:00"}}

	d := &opd.Doctor{ID: id, Name: name, Specialty: specialty}
	for i, h := range hours {
		d.Slots = append(d.Slots, opd.TimeSlot{
			ID:        fmt.Sprintf("%s-s%d", id, i+1),
			StartTime: h[0],
			EndTime:   h[1],
			Capacity:  capacity,
		})
	}
	return d
}

// LoadRoster reads doctors and their slots from a YAML file.
func LoadRoster(path string) ([]*opd.Doctor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

func ParseRoster(data []byte) ([]*opd.Doctor, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if err := validateRoster(f.Doctors); err != nil {
		return nil, err
	}
	return f.Doctors, nil
}

// MarshalRoster renders doctors in the format LoadRoster reads. Tokens are
// never written.
func MarshalRoster(doctors []*opd.Doctor) ([]byte, error) {
	if err := validateRoster(doctors); err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(rosterFile{Doctors: doctors})
	if err != nil {
		return nil, fmt.Errorf("marshal roster: %w", err)
	}
	return data, nil
}

func validateRoster(doctors []*opd.Doctor) error {
	if len(doctors) == 0 {
		return fmt.Errorf("%w: no doctors", ErrInvalidRoster)
	}

	seen := make(map[string]bool)
	for _, d := range doctors {
		if d == nil || d.ID == "" {
			return fmt.Errorf("%w: doctor without id", ErrInvalidRoster)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate doctor %q", ErrInvalidRoster, d.ID)
		}
		seen[d.ID] = true

		slots := make(map[string]bool)
		for _, s := range d.Slots {
			if s.ID == "" {
				return fmt.Errorf("%w: doctor %q has a slot without id", ErrInvalidRoster, d.ID)
			}
			if slots[s.ID] {
				return fmt.Errorf("%w: duplicate slot %q under doctor %q", ErrInvalidRoster, s.ID, d.ID)
			}
			if s.Capacity < 0 {
				return fmt.Errorf("%w: slot %q has negative capacity", ErrInvalidRoster, s.ID)
			}
			slots[s.ID] = true
		}
	}
	return nil
}
