// Package config loads the single, typed process-wide configuration
// document and exposes it as a read-only snapshot. Settings that operators
// are allowed to mutate at runtime (the "settings" subset) live behind a
// Store so a PUT /settings reload never blocks an in-flight read.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// DetectorConfig carries per-event-type defaults in the settings document.
// The engine does not read them: severity and confidence always come from
// the event itself.
type DetectorConfig struct {
	DefaultSeverity   int     `json:"default_severity" yaml:"default_severity"`
	TriggerConfidence float64 `json:"trigger_confidence" yaml:"trigger_confidence"`
}

// IncidentGrouping holds the dedup/merge window and compatibility map used
// by the grouper.
type IncidentGrouping struct {
	DedupWindowSeconds   int                 `json:"dedup_window_seconds" yaml:"dedup_window_seconds"`
	MergeWindowSeconds   int                 `json:"merge_window_seconds" yaml:"merge_window_seconds"`
	CompatibleEventTypes map[string][]string `json:"compatible_event_types" yaml:"compatible_event_types"`
}

// Thresholds holds the engine's decision thresholds.
type Thresholds struct {
	MinConfidenceForNotify float64 `json:"min_confidence_for_notify" yaml:"min_confidence_for_notify"`
	HighSeverityThreshold  int     `json:"high_severity_threshold" yaml:"high_severity_threshold"`
}

// API holds bind-address configuration.
type API struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Evidence holds informational retention configuration enforced by an
// out-of-scope janitor process.
type Evidence struct {
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
}

// RateLimit bounds the webhook ingestion endpoint per source IP.
type RateLimit struct {
	PerMinute int `json:"per_minute" yaml:"per_minute"`
}

// LLM toggles and bounds the optional prose generator.
type LLM struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	TimeoutSeconds int  `json:"timeout_seconds" yaml:"timeout_seconds"`
}

func (l LLM) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Document is the full settings document from spec §4.1.
type Document struct {
	IncidentGrouping IncidentGrouping          `json:"incident_grouping" yaml:"incident_grouping"`
	Thresholds       Thresholds                `json:"thresholds" yaml:"thresholds"`
	API              API                       `json:"api" yaml:"api"`
	Evidence         Evidence                  `json:"evidence" yaml:"evidence"`
	LLM              LLM                       `json:"llm" yaml:"llm"`
	RateLimit        RateLimit                 `json:"rate_limit" yaml:"rate_limit"`
	Detectors        map[string]DetectorConfig `json:"detectors" yaml:"detectors"`
}

// Defaults returns the hard-coded fallback document from spec §4.1. Admins
// are expected to override these via settings.json.
func Defaults() Document {
	return Document{
		IncidentGrouping: IncidentGrouping{
			DedupWindowSeconds: 30,
			MergeWindowSeconds: 300,
			CompatibleEventTypes: map[string][]string{
				"person_detected": {"loitering"},
				"loitering":       {"person_detected"},
			},
		},
		Thresholds: Thresholds{
			MinConfidenceForNotify: 0.75,
			HighSeverityThreshold:  4,
		},
		API:       API{Host: "0.0.0.0", Port: 8080},
		Evidence:  Evidence{RetentionDays: 30},
		LLM:       LLM{Enabled: false, TimeoutSeconds: 3},
		RateLimit: RateLimit{PerMinute: 600},
		Detectors: map[string]DetectorConfig{
			"watchlist_hit":  {DefaultSeverity: 4, TriggerConfidence: 0.6},
			"plate_mismatch": {DefaultSeverity: 3, TriggerConfidence: 0.5},
			"red_light":      {DefaultSeverity: 2, TriggerConfidence: 0.5},
		},
	}
}

// FromEnv overlays environment-variable overrides onto Defaults(). It never
// touches disk; combine with FromFile for full startup configuration.
func FromEnv() Document {
	doc := Defaults()
	if v := os.Getenv("ALIBI_API_HOST"); v != "" {
		doc.API.Host = v
	}
	return doc
}

// FromFile merges a JSON or YAML settings document (by extension) on top of
// base. A missing file is not an error: the base document stands alone.
func FromFile(path string, base Document) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, err
	}
	doc := base
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return base, err
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return base, err
		}
	}
	return doc, nil
}

func isYAML(path string) bool {
	for _, suf := range []string{".yaml", ".yml"} {
		if len(path) >= len(suf) && path[len(path)-len(suf):] == suf {
			return true
		}
	}
	return false
}

// Store holds the live, reloadable settings document behind an atomic
// pointer so HTTP handlers on the hot path never block a concurrent reload
// (spec §4.1: "reloaded only via explicit admin endpoint").
type Store struct {
	current atomicDoc
	path    string
	group   singleflight.Group
}

// NewStore builds a Store seeded with doc and persisted to path (used by
// Reload and admin PUT /settings).
func NewStore(doc Document, path string) *Store {
	s := &Store{path: path}
	s.current.store(doc)
	return s
}

// Get returns the current settings snapshot. Safe for concurrent use.
func (s *Store) Get() Document {
	return s.current.load()
}

// Set installs a new settings document, persisting it to the backing file
// if one is configured.
func (s *Store) Set(doc Document) error {
	_, err, _ := s.group.Do("set", func() (any, error) {
		if s.path != "" {
			data, merr := json.MarshalIndent(doc, "", "  ")
			if merr != nil {
				return nil, merr
			}
			if werr := os.WriteFile(s.path, data, 0o600); werr != nil {
				return nil, werr
			}
		}
		s.current.store(doc)
		return nil, nil
	})
	return err
}

// Reload re-reads the backing file and installs the result, coalescing
// concurrent reload calls via singleflight.
func (s *Store) Reload() (Document, error) {
	v, err, _ := s.group.Do("reload", func() (any, error) {
		doc, ferr := FromFile(s.path, s.current.load())
		if ferr != nil {
			return Document{}, ferr
		}
		s.current.store(doc)
		return doc, nil
	})
	if err != nil {
		return Document{}, err
	}
	return v.(Document), nil
}

// Watch starts an fsnotify watch on the store's backing file and calls
// Reload whenever it changes, logging the outcome. Admin updates via
// PUT /settings (which go through Set) remain the primary mechanism; this
// is strictly a dev-mode convenience and is safe to skip when path is
// empty. The watcher runs until done is closed; a nil done never closes.
func (s *Store) Watch(done <-chan struct{}, logger *slog.Logger) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if _, err := s.Reload(); err != nil {
					logger.Error("settings auto-reload failed", "error", err)
					continue
				}
				logger.Info("settings auto-reloaded", "path", s.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("settings watcher error", "error", err)
			}
		}
	}()
	return nil
}
