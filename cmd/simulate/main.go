package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/api"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/opd"
	"github.com/nikhilsharma0818/OPD-Token-Allocation/internal/token"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	AllocateRatio float64
	CancelRatio   float64
	ReadRatio     float64
	// EmergencyRatio and PaidRatio carve their share out of the allocations;
	// the remainder is spread over follow-up, online and walk-in.
	EmergencyRatio float64
	PaidRatio      float64
}

type slotRef struct {
	DoctorID string
	SlotID   string
}

type DataPool struct {
	Doctors []string
	Slots   []slotRef
	mu      sync.RWMutex
	tokens  []uuid.UUID
}

func (dp *DataPool) AddToken(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.tokens = append(dp.tokens, id)
}

// TakeRandomToken removes and returns a token so it is only cancelled once.
func (dp *DataPool) TakeRandomToken(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.tokens) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.tokens))
	id := dp.tokens[idx]
	dp.tokens[idx] = dp.tokens[len(dp.tokens)-1]
	dp.tokens = dp.tokens[:len(dp.tokens)-1]
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Allocate OperationMetrics
	Cancel   OperationMetrics
	Schedule OperationMetrics
	Stats    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics

	// per-class allocation counters, indexed by rank
	byClass [5]int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d allocate=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.AllocateRatio, cfg.CancelRatio, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = dataPool

	log.Printf("loaded: %d doctors, %d slots", len(dataPool.Doctors), len(dataPool.Slots))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		AllocateRatio:  getFloat("SIM_ALLOCATE_RATIO", 0.5),
		CancelRatio:    getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		EmergencyRatio: getFloat("SIM_EMERGENCY_RATIO", 0.05),
		PaidRatio:      getFloat("SIM_PAID_RATIO", 0.15),
	}

	// Normalize ratios
	total := cfg.AllocateRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.AllocateRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.EmergencyRatio < 0 || cfg.PaidRatio < 0 || cfg.EmergencyRatio+cfg.PaidRatio > 1 {
		return fmt.Errorf("SIM_EMERGENCY_RATIO + SIM_PAID_RATIO must be within [0, 1]")
	}
	return nil
}

// loadDataPool discovers doctors and slots through the API itself.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	var doctors []token.DoctorSummary
	if err := s.getJSON(ctx, "/api/doctors", &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	dataPool := &DataPool{}
	for _, d := range doctors {
		var sched opd.Doctor
		if err := s.getJSON(ctx, "/api/doctors/"+d.ID+"/schedule", &sched); err != nil {
			return nil, fmt.Errorf("load schedule %s: %w", d.ID, err)
		}
		dataPool.Doctors = append(dataPool.Doctors, d.ID)
		for _, slot := range sched.Slots {
			dataPool.Slots = append(dataPool.Slots, slotRef{DoctorID: d.ID, SlotID: slot.ID})
		}
	}

	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}

	return dataPool, nil
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.AllocateRatio {
				s.doAllocate(ctx, rng, faker)
			} else if r < s.config.AllocateRatio+s.config.CancelRatio {
				s.doCancel(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doSchedule(ctx, rng)
			} else {
				s.doStats(ctx)
			}
		}
	}
}

func (s *Simulator) pickClass(rng *rand.Rand) opd.PriorityClass {
	r := rng.Float64()
	switch {
	case r < s.config.EmergencyRatio:
		return opd.Emergency
	case r < s.config.EmergencyRatio+s.config.PaidRatio:
		return opd.PaidPriority
	}
	rest := []opd.PriorityClass{opd.FollowUp, opd.Online, opd.WalkIn}
	return rest[rng.Intn(len(rest))]
}

func classIndex(class opd.PriorityClass) int {
	r, _ := opd.Rank(class)
	return r
}

func (s *Simulator) doAllocate(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	class := s.pickClass(rng)

	body, _ := json.Marshal(api.AllocateTokenRequest{
		DoctorID:    slot.DoctorID,
		SlotID:      slot.SlotID,
		PatientName: faker.Name(),
		Type:        class.String(),
	})

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/tokens/allocate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var out api.AllocateTokenResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Token.ID != uuid.Nil {
				s.pool.AddToken(out.Token.ID)
			}
			atomic.AddInt64(&s.byClass[classIndex(class)], 1)
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Allocate.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	tokenID, ok := s.pool.TakeRandomToken(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/api/tokens/%s", s.config.APIBaseURL, tokenID.String()), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			success = true
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doSchedule(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/doctors/%s/schedule", s.config.APIBaseURL, doctorID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Schedule.Record(latency, success, false)
}

func (s *Simulator) doStats(ctx context.Context) {
	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/stats", nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Stats.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Allocate", &s.metrics.Allocate)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Schedule", &s.metrics.Schedule)
	printOperationReport("Stats", &s.metrics.Stats)

	fmt.Println("Allocated by class:")
	for _, class := range opd.PriorityClasses() {
		fmt.Printf("  %-14s %d\n", class, atomic.LoadInt64(&s.byClass[classIndex(class)]))
	}
	fmt.Println()

	var stats []token.DoctorStats
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.getJSON(ctx, "/api/stats", &stats); err != nil {
		log.Printf("final stats unavailable: %v", err)
		return
	}
	fmt.Println("Final occupancy:")
	for _, st := range stats {
		fmt.Printf("  %-4s %-20s %d/%d\n", st.DoctorID, st.Name, st.Booked, st.Capacity)
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected (409): %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
