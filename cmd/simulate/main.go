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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calmclinic/therapy-booking/internal/config"
	"github.com/calmclinic/therapy-booking/internal/db"
)

// simulate races concurrent patients and therapists against the API: patients
// fetch slots and file booking requests, therapists approve or reject their
// pending queue. Conflicts (409) are the interesting outcome, not a failure.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	RequestRatio float64
	DecideRatio  float64
	SlotsRatio   float64
	PatientLimit int
	DaysAhead    int
	PostgresDSN  string
}

type DataPool struct {
	Patients   []uuid.UUID
	Therapists []uuid.UUID

	mu       sync.RWMutex
	requests []pendingRequest
}

type pendingRequest struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
}

func (dp *DataPool) AddRequest(id, therapistID uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.requests = append(dp.requests, pendingRequest{ID: id, TherapistID: therapistID})
}

func (dp *DataPool) TakeRandomRequest(rng *rand.Rand) (pendingRequest, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.requests) == 0 {
		return pendingRequest{}, false
	}
	idx := rng.Intn(len(dp.requests))
	req := dp.requests[idx]
	dp.requests = append(dp.requests[:idx], dp.requests[idx+1:]...)
	return req, true
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

	p50 = latencies[len(latencies)*50/100]
	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Slots   OperationMetrics
	Request OperationMetrics
	Decide  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d request=%.2f decide=%.2f slots=%.2f",
		cfg.Duration, cfg.Workers, cfg.RequestRatio, cfg.DecideRatio, cfg.SlotsRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d therapists", len(dataPool.Patients), len(dataPool.Therapists))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		RequestRatio: getFloat("SIM_REQUEST_RATIO", 0.4),
		DecideRatio:  getFloat("SIM_DECIDE_RATIO", 0.3),
		SlotsRatio:   getFloat("SIM_SLOTS_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 400),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 14),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.RequestRatio + cfg.DecideRatio + cfg.SlotsRatio
	if total > 0 {
		cfg.RequestRatio /= total
		cfg.DecideRatio /= total
		cfg.SlotsRatio /= total
	}

	return cfg
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `SELECT id FROM therapists`)
	if err != nil {
		return nil, fmt.Errorf("load therapists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Therapists = append(dataPool.Therapists, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Therapists) == 0 {
		return nil, fmt.Errorf("no therapists loaded")
	}

	return dataPool, nil
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

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.RequestRatio:
				s.doRequest(ctx, rng)
			case r < s.config.RequestRatio+s.config.DecideRatio:
				s.doDecide(ctx, rng)
			default:
				s.doSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	day := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead))
	return day.Format("2006-01-02")
}

// doSlots fetches the availability of a random therapist on a random day.
func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]
	url := fmt.Sprintf("%s/therapists/%s/slots?date=%s", s.config.APIBaseURL, therapistID, s.randomDate(rng))

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.Slots.Record(latency, success, false)
}

// doRequest files a booking request as a random patient.
func (s *Simulator) doRequest(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	therapistID := s.pool.Therapists[rng.Intn(len(s.pool.Therapists))]

	hour := 8 + rng.Intn(9)
	minute := 30 * rng.Intn(2)

	body, _ := json.Marshal(map[string]string{
		"therapist_id": therapistID.String(),
		"date":         s.randomDate(rng),
		"time":         fmt.Sprintf("%02d:%02d", hour, minute),
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/booking-requests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", patientID.String())
	req.Header.Set("X-User-Role", "patient")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		if resp.StatusCode == http.StatusCreated {
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			if decodeErr := json.NewDecoder(resp.Body).Decode(&created); decodeErr == nil {
				s.pool.AddRequest(created.ID, therapistID)
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
		resp.Body.Close()
	}

	s.metrics.Request.Record(latency, success, conflict)
}

// doDecide approves or rejects a previously created request as its therapist.
func (s *Simulator) doDecide(ctx context.Context, rng *rand.Rand) {
	pending, ok := s.pool.TakeRandomRequest(rng)
	if !ok {
		return
	}

	action := "approve"
	if rng.Float64() < 0.3 {
		action = "reject"
	}
	url := fmt.Sprintf("%s/booking-requests/%s/%s", s.config.APIBaseURL, pending.ID, action)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "POST", url, nil)
	req.Header.Set("X-User-ID", pending.TherapistID.String())
	req.Header.Set("X-User-Role", "therapist")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Decide.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== Simulation Report ===")
	printOperation("slots", &s.metrics.Slots)
	printOperation("booking-request", &s.metrics.Request)
	printOperation("decide", &s.metrics.Decide)
}

func printOperation(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("\n%s:\n", name)
	fmt.Printf("  total=%d success=%d conflict=%d error=%d\n",
		total,
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error),
	)
	fmt.Printf("  latency avg=%s min=%s max=%s p50=%s p95=%s\n", avg, min, max, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
