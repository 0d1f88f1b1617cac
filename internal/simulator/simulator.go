// Package simulator is the event simulator from spec §4.9: a singleton
// generator that produces schema-valid camera events and feeds them through
// the same ingestion function HTTP uses, plus a JSONL replayer for
// previously captured event streams.
package simulator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"alibi/internal/audit"
	"alibi/internal/clock"
	"alibi/internal/domain"
)

const (
	minRatePerMinute = 0.1
	maxRatePerMinute = 120
)

// Ingester is the single function boundary a simulated or real event enters
// through. *ingestion.Pipeline satisfies this.
type Ingester interface {
	Ingest(ctx context.Context, evt domain.CameraEvent) (domain.Incident, error)
}

// Status is the simulator's current state, returned by Start/Stop/Status.
type Status struct {
	Running         bool    `json:"running"`
	Scenario        string  `json:"scenario,omitempty"`
	RatePerMinute   float64 `json:"rate_per_minute,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
	EventsGenerated int64   `json:"events_generated"`
	EventsRejected  int64   `json:"events_rejected"`
}

// ReplayResult summarizes a completed replay run.
type ReplayResult struct {
	LinesProcessed int      `json:"lines_processed"`
	EventsAccepted int      `json:"events_accepted"`
	Errors         []string `json:"errors,omitempty"`
}

type run struct {
	scenario  string
	rate      float64
	seed      int64
	cancel    context.CancelFunc
	done      chan struct{}
	generated atomic.Int64
	rejected  atomic.Int64
}

// Simulator enforces spec §4.9's single-run-at-a-time rule and drains any
// in-flight generation before Stop returns.
type Simulator struct {
	ingester Ingester
	clock    clock.Clock
	auditSvc *audit.Service

	mu       sync.Mutex
	current  *run
	lastSeen Status // the most recent run's final counters, kept after Stop
}

// New builds a Simulator that feeds generated and replayed events through
// ingester.
func New(ingester Ingester, clk clock.Clock, auditSvc *audit.Service) *Simulator {
	return &Simulator{ingester: ingester, clock: clk, auditSvc: auditSvc}
}

// Start launches a generation loop for scenario at ratePerMinute, seeded by
// seed. It returns ErrConflict if a run is already in progress.
func (s *Simulator) Start(scenario string, ratePerMinute float64, seed int64) (any, error) {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: simulator is already running", domain.ErrConflict)
	}
	if ratePerMinute < minRatePerMinute || ratePerMinute > maxRatePerMinute {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: rate_per_minute must be in [%.1f, %.0f]", domain.ErrBadInput, minRatePerMinute, maxRatePerMinute)
	}
	preset, err := Lookup(scenario)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{scenario: scenario, rate: ratePerMinute, seed: seed, cancel: cancel, done: make(chan struct{})}
	s.current = r
	s.mu.Unlock()

	go s.loop(ctx, r, newGenerator(preset, seed, s.clock))

	_ = s.auditSvc.Log(context.Background(), "simulator", "simulator_start", scenario, fmt.Sprintf("rate=%.2f seed=%d", ratePerMinute, seed))
	return s.snapshot(r), nil
}

func (s *Simulator) loop(ctx context.Context, r *run, gen *generator) {
	defer close(r.done)

	interval := time.Duration(float64(time.Minute) / r.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evt := gen.Next()
			if err := evt.Validate(); err != nil {
				r.rejected.Add(1)
				continue
			}
			if _, err := s.ingester.Ingest(ctx, evt); err != nil {
				r.rejected.Add(1)
				continue
			}
			r.generated.Add(1)
		}
	}
}

// Stop cancels the running generation loop and waits for it to drain before
// returning the final counters.
func (s *Simulator) Stop() (any, error) {
	s.mu.Lock()
	r := s.current
	if r == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: simulator is not running", domain.ErrConflict)
	}
	s.mu.Unlock()

	r.cancel()
	<-r.done

	status := s.snapshot(r)
	status.Running = false

	s.mu.Lock()
	s.current = nil
	s.lastSeen = status
	s.mu.Unlock()

	_ = s.auditSvc.Log(context.Background(), "simulator", "simulator_stop", r.scenario,
		fmt.Sprintf("generated=%d rejected=%d", status.EventsGenerated, status.EventsRejected))
	return status, nil
}

// Status reports the current or, if nothing is running, the last
// completed run's final state.
func (s *Simulator) Status() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return s.lastSeen
	}
	return s.snapshot(s.current)
}

func (s *Simulator) snapshot(r *run) Status {
	return Status{
		Running:         true,
		Scenario:        r.scenario,
		RatePerMinute:   r.rate,
		Seed:            r.seed,
		EventsGenerated: r.generated.Load(),
		EventsRejected:  r.rejected.Load(),
	}
}

// Replay parses data as newline-delimited JSON camera events and injects
// each valid one through the same ingestion function, in file order.
// Malformed or invalid lines are collected into Errors; valid lines still
// proceed, per spec §4.9.
func (s *Simulator) Replay(ctx context.Context, data []byte) (any, error) {
	result := ReplayResult{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		result.LinesProcessed++

		var evt domain.CameraEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		if err := evt.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		if _, err := s.ingester.Ingest(ctx, evt); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}
		result.EventsAccepted++
	}
	if err := scanner.Err(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scan error: %v", err))
	}
	return result, nil
}
