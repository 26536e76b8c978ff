package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/provider-availability-scheduling/internal/calendar"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
	"github.com/hackgods/provider-availability-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL    string
	Duration      time.Duration
	Workers       int
	Contenders    int // goroutines racing for one slot before the mixed load starts
	BookingRatio  float64
	CancelRatio   float64
	ReadRatio     float64
	ProviderLimit int
	PatientLimit  int
	ProviderIDs   []uuid.UUID
	PatientIDs    []uuid.UUID
	PostgresDSN   string
	Grid          calendar.GridParams
}

type DataPool struct {
	Providers    []uuid.UUID
	Patients     []uuid.UUID
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&om.Error, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict || status == http.StatusTooManyRequests:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	n := len(latencies)
	return sum / time.Duration(n), latencies[0], latencies[n-1], latencies[n*50/100], latencies[min(n*95/100, n-1)]
}

type Metrics struct {
	Contention    OperationMetrics
	Booking       OperationMetrics
	Cancel        OperationMetrics
	ReadWeek      OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	cfg, base := loadConfig()
	logger := config.NewLogger(base, "simulate")

	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("contenders", cfg.Contenders).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataPool, err := loadDataPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("providers", len(dataPool.Providers)).Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.RunContention(context.Background())
	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, config.Config) {
	base, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:    strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:      getDuration("SIM_DURATION", 30*time.Second),
		Workers:       getInt("SIM_WORKERS", 10),
		Contenders:    getInt("SIM_CONTENDERS", 50),
		BookingRatio:  getFloat("SIM_BOOKING_RATIO", 0.4),
		CancelRatio:   getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:     getFloat("SIM_READ_RATIO", 0.5),
		ProviderLimit: getInt("SIM_PROVIDER_LIMIT", 50),
		PatientLimit:  getInt("SIM_PATIENT_LIMIT", 4000),
		ProviderIDs:   getUUIDs("SIM_PROVIDER_IDS"),
		PatientIDs:    getUUIDs("SIM_PATIENT_IDS"),
		PostgresDSN:   base.PostgresDSN,
		Grid:          base.Grid,
	}

	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg, base
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" && (len(cfg.ProviderIDs) == 0 || len(cfg.PatientIDs) == 0) {
		return fmt.Errorf("either POSTGRES_DSN or both SIM_PROVIDER_IDS and SIM_PATIENT_IDS are required")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// loadDataPool takes IDs from the environment when given, otherwise from Postgres.
func loadDataPool(ctx context.Context, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Providers: cfg.ProviderIDs, Patients: cfg.PatientIDs}
	if len(dataPool.Providers) > 0 && len(dataPool.Patients) > 0 {
		return dataPool, nil
	}

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	defer pgPool.Close()

	if len(dataPool.Providers) == 0 {
		dataPool.Providers, err = queryIDs(ctx, pgPool, `
			SELECT DISTINCT provider_id FROM availability_templates LIMIT $1
		`, cfg.ProviderLimit)
		if err != nil {
			return nil, fmt.Errorf("load providers: %w", err)
		}
	}
	if len(dataPool.Patients) == 0 {
		dataPool.Patients, err = queryIDs(ctx, pgPool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
		if err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
	}

	if len(dataPool.Providers) == 0 {
		return nil, fmt.Errorf("no providers with a template loaded")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	return dataPool, nil
}

func queryIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RunContention has every contender reserve the same free slot at once.
// Exactly one of them should get a 201.
func (s *Simulator) RunContention(ctx context.Context) {
	if s.config.Contenders <= 0 {
		return
	}

	providerID := s.pool.Providers[0]
	date, minute, ok := s.firstFreeSlot(ctx, providerID)
	if !ok {
		s.logger.Warn().Str("provider_id", providerID.String()).Msg("no free slot next week, skipping contention run")
		return
	}

	s.logger.Info().
		Str("provider_id", providerID.String()).
		Str("date", date).
		Str("time", calendar.FormatMinutes(minute)).
		Int("contenders", s.config.Contenders).
		Msg("contention run")

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.Contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			patientID := s.pool.Patients[i%len(s.pool.Patients)]
			status, _, latency, err := s.reserve(ctx, providerID, patientID, date, minute)
			s.metrics.Contention.Record(latency, status, err)
		}(i)
	}
	close(start)
	wg.Wait()

	if won := atomic.LoadInt64(&s.metrics.Contention.Success); won != 1 {
		s.logger.Error().Int64("successes", won).Msg("contended slot was not booked exactly once")
	}
}

func (s *Simulator) firstFreeSlot(ctx context.Context, providerID uuid.UUID) (string, int, bool) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/providers/%s/weeks/1", s.config.APIBaseURL, providerID), nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, false
	}
	defer resp.Body.Close()

	var week calendar.WeekSchedule
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&week) != nil {
		return "", 0, false
	}
	for _, day := range week.Days {
		for _, slot := range day.Slots {
			if slot.Available {
				return day.Date.Format(time.DateOnly), slot.Time, true
			}
		}
	}
	return "", 0, false
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting mixed load")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
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
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadWeek(ctx, rng)
				case 1:
					s.doReadByID(ctx, rng)
				case 2:
					s.doListByPatient(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) reserve(ctx context.Context, providerID, patientID uuid.UUID, date string, minute int) (int, uuid.UUID, time.Duration, error) {
	body, _ := json.Marshal(map[string]any{
		"provider_id": providerID.String(),
		"patient_id":  patientID.String(),
		"date":        date,
		"time":        calendar.FormatMinutes(minute),
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/v1/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, uuid.Nil, latency, err
	}
	defer resp.Body.Close()

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		_ = json.NewDecoder(resp.Body).Decode(&created)
	}
	return resp.StatusCode, created.ID, latency, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	grid := s.config.Grid
	weekStart := grid.WeekStartFor(1+rng.Intn(2), time.Now())
	date := weekStart.AddDate(0, 0, rng.Intn(7)).Format(time.DateOnly)
	minute := grid.DayStartMinutes + rng.Intn(grid.SlotsPerDay())*grid.GranularityMinutes

	status, id, latency, err := s.reserve(ctx, providerID, patientID, date, minute)
	if err != nil && ctx.Err() != nil {
		return
	}
	if id != uuid.Nil {
		s.pool.AddAppointment(id)
	}
	s.metrics.Booking.Record(latency, status, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.do(ctx, &s.metrics.Cancel, http.MethodPost, fmt.Sprintf("/v1/appointments/%s/cancel", apptID))
}

func (s *Simulator) doReadWeek(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	s.do(ctx, &s.metrics.ReadWeek, http.MethodGet, fmt.Sprintf("/v1/providers/%s/weeks/%d", providerID, rng.Intn(3)))
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	s.do(ctx, &s.metrics.ReadByID, http.MethodGet, "/v1/appointments/"+apptID.String())
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.do(ctx, &s.metrics.ListByPatient, http.MethodGet,
		fmt.Sprintf("/v1/patients/%s/appointments?limit=20&offset=0", patientID))
}

func (s *Simulator) do(ctx context.Context, om *OperationMetrics, method, path string) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0, err)
		}
		return
	}
	resp.Body.Close()
	om.Record(latency, resp.StatusCode, nil)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Contended slot", &s.metrics.Contention)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read week", &s.metrics.ReadWeek)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

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

func getUUIDs(key string) []uuid.UUID {
	var ids []uuid.UUID
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if id, err := uuid.Parse(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
