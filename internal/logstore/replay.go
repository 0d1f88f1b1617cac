package logstore

import "alibi/internal/domain"

// ReplayEvents reads path as a JSONL file of raw camera events (not the
// record envelope — a replay file is the simulator's own export format)
// and returns them in file order. Neither the live append-only store nor
// the simulator's replay command (Simulator.Replay parses its own input)
// calls it.
func ReplayEvents(path string) ([]domain.CameraEvent, error) {
	var events []domain.CameraEvent
	err := scanLines(path, func(e domain.CameraEvent) error {
		events = append(events, e)
		return nil
	})
	return events, err
}
