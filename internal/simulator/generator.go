package simulator

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"

	"alibi/internal/clock"
	"alibi/internal/domain"
)

// generator draws schema-valid events from a Scenario using a PRNG private
// to the run, so two runs with the same seed never interfere with each
// other's draws even when running concurrently (which Start's single-run
// rule otherwise forbids, but Replay may legitimately overlap a live run).
type generator struct {
	scenario Scenario
	rng      *rand.Rand
	clock    clock.Clock

	weightedTypes []string
	cumWeights    []float64
	totalWeight   float64
}

func newGenerator(scenario Scenario, seed int64, clk clock.Clock) *generator {
	g := &generator{
		scenario: scenario,
		rng:      rand.New(rand.NewPCG(uint64(seed), uint64(seed>>32))),
		clock:    clk,
	}

	types := make([]string, 0, len(scenario.EventTypeWeights))
	for t := range scenario.EventTypeWeights {
		types = append(types, t)
	}
	sort.Strings(types) // deterministic draw order for a given seed
	g.weightedTypes = types

	running := 0.0
	for _, t := range types {
		running += scenario.EventTypeWeights[t]
		g.cumWeights = append(g.cumWeights, running)
	}
	g.totalWeight = running
	return g
}

func (g *generator) pickEventType() string {
	target := g.rng.Float64() * g.totalWeight
	idx := sort.SearchFloat64s(g.cumWeights, target)
	if idx >= len(g.weightedTypes) {
		idx = len(g.weightedTypes) - 1
	}
	return g.weightedTypes[idx]
}

func (g *generator) pickFrom(pool []string) string {
	return pool[g.rng.IntN(len(pool))]
}

func (g *generator) floatInRange(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *generator) intInRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

// Next produces one schema-valid CameraEvent drawn from the scenario.
func (g *generator) Next() domain.CameraEvent {
	eventType := g.pickEventType()
	evt := domain.CameraEvent{
		EventID:    fmt.Sprintf("sim_%s", uuid.NewString()),
		CameraID:   g.pickFrom(g.scenario.Cameras),
		ZoneID:     g.pickFrom(g.scenario.Zones),
		Timestamp:  g.clock.Now(),
		EventType:  eventType,
		Confidence: g.floatInRange(g.scenario.ConfidenceRange[0], g.scenario.ConfidenceRange[1]),
		Severity:   g.intInRange(g.scenario.SeverityRange[0], g.scenario.SeverityRange[1]),
	}
	if g.scenario.WatchlistHitRate > 0 && g.rng.Float64() < g.scenario.WatchlistHitRate {
		evt.Metadata = map[string]any{"watchlist_match": true}
	}
	return evt
}
