package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/schedule"
)

// seed writes a synthetic roster file for ROSTER_FILE.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	out := flag.String("out", "roster.yaml", "output path")
	doctors := flag.Int("doctors", 20, "number of doctors")
	slots := flag.Int("slots", 6, "hourly slots per doctor, starting at 08:00")
	minCap := flag.Int("min-capacity", 3, "minimum slot capacity")
	maxCap := flag.Int("max-capacity", 10, "maximum slot capacity")
	flag.Parse()

	if *doctors <= 0 || *slots <= 0 || *slots > 16 {
		log.Fatal("doctors must be > 0 and slots within 1..16")
	}
	if *minCap < 0 || *maxCap < *minCap {
		log.Fatal("capacity range is invalid")
	}

	gofakeit.Seed(uint64(time.Now().UnixNano()))

	roster := seedDoctors(*doctors, *slots, *minCap, *maxCap)

	data, err := schedule.MarshalRoster(roster)
	if err != nil {
		log.Fatalf("marshal roster: %v", err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write roster: %v", err)
	}

	log.Printf("seed complete path=%s doctors=%d slots_per_doctor=%d", *out, *doctors, *slots)
}

func seedDoctors(count, slots, minCap, maxCap int) []*opd.Doctor {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"General Physician",
		"Kid's Specialist",
		"Bone Specialist",
		"Dermatology",
		"Cardiology",
		"ENT",
		"Ophthalmology",
		"Gynaecology",
		"Neurology",
		"Psychiatry",
	}

	roster := make([]*opd.Doctor, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("d%d", i+1)
		d := &opd.Doctor{
			ID:        id,
			Name:      "Dr. " + gofakeit.FirstName(),
			Specialty: specialties[gofakeit.Number(0, len(specialties)-1)],
		}
		capacity := gofakeit.Number(minCap, maxCap)
		for h := 0; h < slots; h++ {
			d.Slots = append(d.Slots, opd.TimeSlot{
				ID:        fmt.Sprintf("%s-s%d", id, h+1),
				StartTime: fmt.Sprintf("%02d:00", 8+h),
				EndTime:   fmt.Sprintf("%02d:00", 9+h),
				Capacity:  capacity,
			})
		}
		roster = append(roster, d)
	}
	return roster
}
