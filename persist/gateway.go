// Package persist carries the whitelisted part of a workspace's state across
// process restarts.
//
// One Gateway owns one namespaced record holding the serialised value of
// every registered store. Stores opt in by implementing Persistable; the
// Policy decides which of them may. Rehydration happens once, before the
// stores are handed out, and never surfaces an error: a missing or damaged
// record leaves the affected store at its defaults.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// RecordVersion is written into every record.
const RecordVersion = 1

// ErrNotWhitelisted is returned when registering a store the policy excludes.
var ErrNotWhitelisted = errors.New("persist: store is not whitelisted")

var writesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "docupilot",
		Subsystem: "persist",
		Name:      "writes_total",
		Help:      "Persisted record writes by outcome.",
	},
	[]string{"outcome"},
)

// Persistable is a store whose state survives restarts.
type Persistable interface {
	// PersistName is the key of the store inside the record.
	PersistName() string
	Snapshot() (json.RawMessage, error)
	// Restore replaces the store state. On error the store must be left at
	// its current value.
	Restore(json.RawMessage) error
	// OnChange registers fn to run after every committed mutation.
	OnChange(fn func()) (cancel func())
}

// Policy is the serialisation policy: the record namespace and the store
// names allowed into it.
type Policy struct {
	Namespace string
	Whitelist []string
}

// DefaultPolicy persists exactly the session and the theme under persist:root.
func DefaultPolicy() Policy {
	return Policy{Namespace: "persist:root", Whitelist: []string{"session", "theme"}}
}

func (p Policy) allows(name string) bool {
	for _, w := range p.Whitelist {
		if w == name {
			return true
		}
	}
	return false
}

type record struct {
	Version int                        `json:"version"`
	Stores  map[string]json.RawMessage `json:"stores"`
}

// Gateway serialises registered stores into a single record.
type Gateway struct {
	backend Backend
	policy  Policy
	log     zerolog.Logger
	timeout time.Duration

	mu      sync.Mutex
	stores  map[string]Persistable
	cancels []func()
	last    []byte
	started bool
}

// NewGateway returns a gateway writing through backend.
func NewGateway(backend Backend, policy Policy, log zerolog.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		policy:  policy,
		log:     log.With().Str("component", "persist").Str("namespace", policy.Namespace).Logger(),
		timeout: 5 * time.Second,
		stores:  make(map[string]Persistable),
	}
}

// Register adds p to the record. Only whitelisted names are accepted.
func (g *Gateway) Register(p Persistable) error {
	name := p.PersistName()
	if !g.policy.allows(name) {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, name)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stores[name] = p
	return nil
}

// Rehydrate restores every registered store from the stored record. Absent
// records, corrupt JSON and stores that refuse their value all degrade to
// defaults; the problems are logged, never returned.
func (g *Gateway) Rehydrate(ctx context.Context) {
	raw, err := g.backend.Load(ctx, g.policy.Namespace)
	if errors.Is(err, ErrNoRecord) {
		g.log.Debug().Msg("no persisted record; starting from defaults")
		return
	}
	if err != nil {
		g.log.Warn().Stack().Err(err).Msg("load persisted record failed; starting from defaults")
		return
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		g.log.Warn().Err(err).Msg("persisted record is corrupt; starting from defaults")
		return
	}
	if rec.Version != RecordVersion {
		g.log.Warn().Int("version", rec.Version).Msg("unsupported persisted record version; starting from defaults")
		return
	}

	// Restore outside mu: a started gateway is notified by the store and
	// flushes under mu.
	g.mu.Lock()
	stores := make(map[string]Persistable, len(g.stores))
	for name, p := range g.stores {
		stores[name] = p
	}
	g.mu.Unlock()

	for name, p := range stores {
		v, ok := rec.Stores[name]
		if !ok {
			continue
		}
		if err := p.Restore(v); err != nil {
			g.log.Warn().Err(err).Str("store", name).Msg("persisted value rejected; keeping defaults")
		}
	}

	g.mu.Lock()
	g.last = raw
	g.mu.Unlock()
}

// Start subscribes to every registered store. From then on each committed
// mutation rewrites the whole record.
func (g *Gateway) Start() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	stores := make([]Persistable, 0, len(g.stores))
	for _, p := range g.stores {
		stores = append(stores, p)
	}
	g.mu.Unlock()

	for _, p := range stores {
		cancel := p.OnChange(func() {
			ctx, done := context.WithTimeout(context.Background(), g.timeout)
			defer done()
			if err := g.Flush(ctx); err != nil {
				g.log.Error().Stack().Err(err).Msg("persist record failed")
			}
		})
		g.mu.Lock()
		g.cancels = append(g.cancels, cancel)
		g.mu.Unlock()
	}
}

// Flush writes the current record. Unchanged bytes are not rewritten.
func (g *Gateway) Flush(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	raw, err := g.encode()
	if err != nil {
		writesTotal.WithLabelValues("error").Inc()
		return err
	}
	if bytes.Equal(raw, g.last) {
		writesTotal.WithLabelValues("unchanged").Inc()
		return nil
	}
	if err := g.backend.Save(ctx, g.policy.Namespace, raw); err != nil {
		writesTotal.WithLabelValues("error").Inc()
		return err
	}
	g.last = raw
	writesTotal.WithLabelValues("written").Inc()
	return nil
}

// encode must be called with mu held.
func (g *Gateway) encode() ([]byte, error) {
	names := make([]string, 0, len(g.stores))
	for n := range g.stores {
		names = append(names, n)
	}
	sort.Strings(names)

	rec := record{Version: RecordVersion, Stores: make(map[string]json.RawMessage, len(names))}
	for _, n := range names {
		v, err := g.stores[n].Snapshot()
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", n, err)
		}
		rec.Stores[n] = v
	}
	return json.Marshal(rec)
}

// Purge deletes the stored record. The in-memory stores are not touched.
func (g *Gateway) Purge(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.backend.Delete(ctx, g.policy.Namespace); err != nil {
		return err
	}
	g.last = nil
	return nil
}

// Stop unsubscribes from the stores. Later mutations are no longer written.
func (g *Gateway) Stop() {
	g.mu.Lock()
	cancels := g.cancels
	g.cancels = nil
	g.started = false
	g.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Close stops the gateway and closes the backend.
func (g *Gateway) Close() error {
	g.Stop()
	return g.backend.Close()
}
