// Package roster loads the analysis-unit roster file and rebuilds the unit
// set when the file changes on disk.
package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"quorum/internal/engine"
	"quorum/internal/logger"
	"quorum/internal/provider"
	"quorum/internal/units"
)

// Entry is one roster row. Kind selects between the built-in rule units and a
// model-backed unit that needs a provider reference.
type Entry struct {
	ID              string         `mapstructure:"id" yaml:"id"`
	Role            string         `mapstructure:"role" yaml:"role"`
	Kind            string         `mapstructure:"kind" yaml:"kind"` // "builtin" | "model"
	Provider        string         `mapstructure:"provider" yaml:"provider"`
	Disabled        bool           `mapstructure:"disabled" yaml:"disabled"`
	Weight          float64        `mapstructure:"weight" yaml:"weight"`
	SystemPrompt    string         `mapstructure:"system_prompt" yaml:"system_prompt"`
	Schema          map[string]any `mapstructure:"schema" yaml:"schema"`
	MaxContextChars int            `mapstructure:"max_context_chars" yaml:"max_context_chars"`
}

// FileConfig maps the units roster document.
type FileConfig struct {
	Units map[string]Entry `mapstructure:"units" yaml:"units"`
}

// Snapshot is an immutable view of the roster at one load.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Entries  map[string]Entry
}

// Weights returns the per-unit weights of the enabled entries, in whatever
// normalization the file carries.
func (s Snapshot) Weights() map[string]float64 {
	out := make(map[string]float64, len(s.Entries))
	for id, e := range s.Entries {
		if !e.Disabled {
			out[id] = e.Weight
		}
	}
	return out
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry watches the roster file and serves snapshots.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the roster and, when watch is true, reloads it on file
// change events.
func NewRegistry(path string, watch bool) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("unit roster requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read unit roster failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("unit roster reload failed: %v", err)
				return
			}
			r.notifyListeners()
		})
		v.WatchConfig()
	}
	return r, nil
}

// Snapshot returns the current roster.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// OnChange registers a reload listener.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readRosterFile(r.path)
	if err != nil {
		return err
	}
	entries := make(map[string]Entry, len(cfg.Units))
	for name, e := range cfg.Units {
		norm, err := normalizeEntry(name, e)
		if err != nil {
			return err
		}
		entries[norm.ID] = norm
	}
	if len(entries) == 0 {
		return fmt.Errorf("unit roster %s defines no units", r.path)
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Entries:  entries,
	}
	r.mu.Unlock()
	logger.Infof("unit roster loaded %d units from %s", len(entries), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("unit roster listener panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func normalizeEntry(name string, e Entry) (Entry, error) {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		e.ID = strings.TrimSpace(name)
	}
	if e.ID == "" {
		return Entry{}, fmt.Errorf("unit roster entry without id")
	}
	e.Role = strings.ToLower(strings.TrimSpace(e.Role))
	switch engine.Role(e.Role) {
	case engine.RoleAggressive, engine.RoleDefensive, engine.RoleInformational:
	default:
		return Entry{}, fmt.Errorf("unit %s: unknown role %q", e.ID, e.Role)
	}
	e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
	if e.Kind == "" {
		e.Kind = "builtin"
	}
	if e.Kind == "model" && strings.TrimSpace(e.Provider) == "" {
		return Entry{}, fmt.Errorf("unit %s: model kind requires provider", e.ID)
	}
	if e.Weight < 0 {
		return Entry{}, fmt.Errorf("unit %s: negative weight", e.ID)
	}
	return e, nil
}

func readRosterFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read unit roster failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse unit roster failed: %w", err)
	}
	return cfg, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Entries:  make(map[string]Entry, len(src.Entries)),
	}
	for id, e := range src.Entries {
		dst.Entries[id] = e
	}
	return dst
}

// BuildUnits turns the enabled roster entries into live analysis units.
// Providers are looked up by ID for model-backed entries.
func BuildUnits(snap Snapshot, providers map[string]provider.ModelProvider) ([]engine.AnalysisUnit, error) {
	ids := make([]string, 0, len(snap.Entries))
	for id, e := range snap.Entries {
		if !e.Disabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]engine.AnalysisUnit, 0, len(ids))
	for _, id := range ids {
		e := snap.Entries[id]
		switch e.Kind {
		case "builtin":
			u, err := builtinUnit(e)
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		case "model":
			prov, ok := providers[e.Provider]
			if !ok {
				return nil, fmt.Errorf("unit %s: unknown provider %q", e.ID, e.Provider)
			}
			if !prov.Enabled() {
				return nil, fmt.Errorf("unit %s: provider %q is disabled", e.ID, e.Provider)
			}
			schemaJSON := ""
			if len(e.Schema) > 0 {
				raw, err := json.Marshal(e.Schema)
				if err != nil {
					return nil, fmt.Errorf("unit %s: encode schema: %w", e.ID, err)
				}
				schemaJSON = string(raw)
			}
			u, err := units.NewModelUnit(units.ModelUnitConfig{
				ID:              e.ID,
				Role:            engine.Role(e.Role),
				SystemPrompt:    e.SystemPrompt,
				SchemaJSON:      schemaJSON,
				MaxContextChars: e.MaxContextChars,
			}, prov)
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		default:
			return nil, fmt.Errorf("unit %s: unknown kind %q", e.ID, e.Kind)
		}
	}
	return out, nil
}

func builtinUnit(e Entry) (engine.AnalysisUnit, error) {
	switch engine.Role(e.Role) {
	case engine.RoleAggressive:
		return units.NewAggressiveUnit(e.ID), nil
	case engine.RoleDefensive:
		return units.NewDefensiveUnit(e.ID), nil
	case engine.RoleInformational:
		return units.NewInformationalUnit(e.ID), nil
	default:
		return nil, fmt.Errorf("unit %s: no builtin for role %q", e.ID, e.Role)
	}
}
