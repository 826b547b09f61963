package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hackgods/tarot-booking/internal/api"
	"github.com/hackgods/tarot-booking/internal/config"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	RPS         float64
	Rounds      int
	ServiceCode string
	SlotMinutes int
	Date        time.Time
	ReadRatio   float64
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
	Checkout  OperationMetrics
	ListSlots OperationMetrics
	Lookup    OperationMetrics
}

// RoundResult is the outcome of every worker racing for one slot.
type RoundResult struct {
	Slot    api.SlotResponse
	Winners int
	Losers  int
	Errors  int
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	limiter *rate.Limiter
	metrics Metrics

	mu       sync.Mutex
	rounds   []RoundResult
	bookings []uuid.UUID
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: date=%s workers=%d rounds=%d rps=%.0f service=%s",
		timeutil.FormatDate(cfg.Date), cfg.Workers, cfg.Rounds, cfg.RPS, cfg.ServiceCode)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Workers),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	if err := sim.Contend(ctx); err != nil {
		log.Fatalf("contention: %v", err)
	}
	sim.Browse(ctx)

	sim.PrintReport()
	if !sim.Consistent() {
		log.Println("FAIL: a contested slot did not have exactly one winner")
		os.Exit(1)
	}
	log.Println("simulation complete")
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	date := timeutil.AddDays(timeutil.Today(baseCfg.BusinessTimezone), 1)
	if raw := os.Getenv("SIM_DATE"); raw != "" {
		if date, err = timeutil.ParseDate(raw); err != nil {
			log.Fatalf("SIM_DATE: %v", err)
		}
	}

	return SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:    getDuration("SIM_DURATION", 60*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		RPS:         getFloat("SIM_RPS", 50),
		Rounds:      getInt("SIM_ROUNDS", 5),
		ServiceCode: getEnv("SIM_SERVICE_CODE", "live-20"),
		SlotMinutes: getInt("SIM_SLOT_MINUTES", 20),
		Date:        date,
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.7),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers < 2 {
		return fmt.Errorf("SIM_WORKERS must be >= 2 to create contention")
	}
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.RPS <= 0 {
		return fmt.Errorf("SIM_RPS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

// Contend races every worker for the same open slot, once per round.
func (s *Simulator) Contend(ctx context.Context) error {
	slots, err := s.listSlots(ctx, true)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return fmt.Errorf("no open %d-minute slots on %s; run cmd/seed first", s.config.SlotMinutes, timeutil.FormatDate(s.config.Date))
	}

	rounds := s.config.Rounds
	if rounds > len(slots) {
		rounds = len(slots)
	}
	log.Printf("contending for %d of %d open slots", rounds, len(slots))

	for i := 0; i < rounds; i++ {
		if ctx.Err() != nil {
			break
		}
		s.contendFor(ctx, slots[i])
	}
	return nil
}

func (s *Simulator) contendFor(ctx context.Context, slot api.SlotResponse) {
	result := RoundResult{Slot: slot}
	var mu sync.Mutex
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			status := s.doCheckout(ctx, slot)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case http.StatusCreated:
				result.Winners++
			case http.StatusConflict, http.StatusUnprocessableEntity, http.StatusServiceUnavailable:
				result.Losers++
			default:
				result.Errors++
			}
		}()
	}
	close(start)
	wg.Wait()

	log.Printf("slot %s %s: winners=%d losers=%d errors=%d",
		slot.Date, slot.Time, result.Winners, result.Losers, result.Errors)

	s.mu.Lock()
	s.rounds = append(s.rounds, result)
	s.mu.Unlock()
}

// Browse spends the remaining time on a read-heavy mix of slot listings,
// booking lookups and checkouts against whatever is still free.
func (s *Simulator) Browse(ctx context.Context) {
	log.Printf("browsing until deadline with %d workers", s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.browser(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (s *Simulator) browser(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		if rng.Float64() < s.config.ReadRatio {
			if rng.Intn(2) == 0 {
				_, _ = s.listSlots(ctx, false)
			} else {
				s.doLookup(ctx, rng)
			}
			continue
		}

		slots, err := s.listSlots(ctx, true)
		if err != nil || len(slots) == 0 {
			continue
		}
		s.doCheckout(ctx, slots[rng.Intn(len(slots))])
	}
}

func (s *Simulator) listSlots(ctx context.Context, availableOnly bool) ([]api.SlotResponse, error) {
	q := url.Values{}
	q.Set("date", timeutil.FormatDate(s.config.Date))
	q.Set("duration", strconv.Itoa(s.config.SlotMinutes))
	q.Set("type", "regular")
	q.Set("available_only", strconv.FormatBool(availableOnly))

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/api/slots?"+q.Encode(), nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.ListSlots.Record(latency, false, false)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.ListSlots.Record(latency, false, false)
		return nil, fmt.Errorf("list slots: status %d", resp.StatusCode)
	}

	var slots []api.SlotResponse
	if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
		s.metrics.ListSlots.Record(latency, false, false)
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	s.metrics.ListSlots.Record(latency, true, false)
	return slots, nil
}

func (s *Simulator) doCheckout(ctx context.Context, slot api.SlotResponse) int {
	body, _ := json.Marshal(api.CheckoutRequest{
		ServiceCode: s.config.ServiceCode,
		Date:        slot.Date,
		Time:        slot.Time,
		Type:        slot.Type,
		Client: scheduling.Client{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Phone: gofakeit.Phone(),
		},
		PaymentMethod:  "pm_card_visa",
		IdempotencyKey: uuid.NewString(),
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Checkout.Record(latency, false, false)
		return 0
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var booking api.BookingResponse
		if err := json.NewDecoder(resp.Body).Decode(&booking); err == nil {
			s.mu.Lock()
			s.bookings = append(s.bookings, booking.ID)
			s.mu.Unlock()
		}
		s.metrics.Checkout.Record(latency, true, false)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		s.metrics.Checkout.Record(latency, false, true)
	default:
		s.metrics.Checkout.Record(latency, false, false)
	}
	return resp.StatusCode
}

func (s *Simulator) doLookup(ctx context.Context, rng *rand.Rand) {
	s.mu.Lock()
	if len(s.bookings) == 0 {
		s.mu.Unlock()
		return
	}
	id := s.bookings[rng.Intn(len(s.bookings))]
	s.mu.Unlock()

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/bookings/%s", s.config.APIBaseURL, id.String()), nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.Lookup.Record(latency, success, false)
}

// Consistent reports whether every contested slot produced exactly one booking.
func (s *Simulator) Consistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.Winners != 1 {
			return false
		}
	}
	return len(s.rounds) > 0
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Date: %s\n", timeutil.FormatDate(s.config.Date))
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	fmt.Println("Contested slots:")
	for _, r := range s.rounds {
		verdict := "ok"
		if r.Winners != 1 {
			verdict = "INCONSISTENT"
		}
		fmt.Printf("  %s %s-%s  winners=%d losers=%d errors=%d  %s\n",
			r.Slot.Date, r.Slot.Time, r.Slot.End, r.Winners, r.Losers, r.Errors, verdict)
	}
	fmt.Println()

	printOperationReport("Checkout", &s.metrics.Checkout)
	printOperationReport("List slots", &s.metrics.ListSlots)
	printOperationReport("Lookup booking", &s.metrics.Lookup)
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
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
