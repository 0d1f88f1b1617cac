package simulator

import (
	"fmt"

	"alibi/internal/domain"
)

// Scenario is a weighted event-type distribution plus the camera/zone pool
// a generated stream draws from. Weights need not sum to 1; they are
// normalized at selection time.
type Scenario struct {
	Name             string
	EventTypeWeights map[string]float64
	Cameras          []string
	Zones            []string
	SeverityRange    [2]int
	ConfidenceRange  [2]float64
	WatchlistHitRate float64
}

// Presets are the named scenarios from spec §4.9. Each models a distinct
// shift character: a quiet overnight loop, an ordinary day, a busier
// evening, a deliberately hot security scenario, and an even mix across
// every known event type.
var Presets = map[string]Scenario{
	"quiet_shift": {
		Name: "quiet_shift",
		EventTypeWeights: map[string]float64{
			"motion_detected": 0.7,
			"person_detected": 0.25,
			"loitering":       0.05,
		},
		Cameras:         []string{"cam_lobby", "cam_parking"},
		Zones:           []string{"zone_entrance", "zone_lot"},
		SeverityRange:   [2]int{1, 2},
		ConfidenceRange: [2]float64{0.5, 0.85},
	},
	"normal_day": {
		Name: "normal_day",
		EventTypeWeights: map[string]float64{
			"motion_detected":  0.4,
			"person_detected":  0.35,
			"loitering":        0.1,
			"vehicle_detected": 0.15,
		},
		Cameras:         []string{"cam_lobby", "cam_parking", "cam_dock", "cam_hallway"},
		Zones:           []string{"zone_entrance", "zone_lot", "zone_dock", "zone_interior"},
		SeverityRange:   [2]int{1, 3},
		ConfidenceRange: [2]float64{0.55, 0.95},
	},
	"busy_evening": {
		Name: "busy_evening",
		EventTypeWeights: map[string]float64{
			"motion_detected":  0.25,
			"person_detected":  0.4,
			"loitering":        0.2,
			"vehicle_detected": 0.15,
		},
		Cameras:          []string{"cam_lobby", "cam_parking", "cam_dock", "cam_hallway", "cam_perimeter"},
		Zones:            []string{"zone_entrance", "zone_lot", "zone_dock", "zone_interior", "zone_perimeter"},
		SeverityRange:    [2]int{2, 4},
		ConfidenceRange:  [2]float64{0.6, 0.97},
		WatchlistHitRate: 0.03,
	},
	"security_incident": {
		Name: "security_incident",
		EventTypeWeights: map[string]float64{
			"person_detected":  0.35,
			"loitering":        0.25,
			"vehicle_detected": 0.1,
			"red_light":        0.1,
			"plate_mismatch":   0.2,
		},
		Cameras:          []string{"cam_perimeter", "cam_dock", "cam_lot_north"},
		Zones:            []string{"zone_perimeter", "zone_dock", "zone_lot"},
		SeverityRange:    [2]int{3, 5},
		ConfidenceRange:  [2]float64{0.7, 0.99},
		WatchlistHitRate: 0.15,
	},
	"mixed_events": {
		Name: "mixed_events",
		EventTypeWeights: map[string]float64{
			"motion_detected":  1,
			"person_detected":  1,
			"loitering":        1,
			"vehicle_detected": 1,
			"red_light":        1,
			"plate_mismatch":   1,
		},
		Cameras:          []string{"cam_lobby", "cam_parking", "cam_dock", "cam_hallway", "cam_perimeter"},
		Zones:            []string{"zone_entrance", "zone_lot", "zone_dock", "zone_interior", "zone_perimeter"},
		SeverityRange:    [2]int{1, 5},
		ConfidenceRange:  [2]float64{0.5, 0.99},
		WatchlistHitRate: 0.05,
	},
}

// Lookup returns the named preset, or an error if it's unknown.
func Lookup(name string) (Scenario, error) {
	s, ok := Presets[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: unknown scenario %q", domain.ErrBadInput, name)
	}
	return s, nil
}
