package store

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase names one step of a request lifecycle.
type Phase string

const (
	PhaseStart   Phase = "start"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
	// PhaseStale marks a resolution that arrived after its context changed and
	// was discarded.
	PhaseStale Phase = "stale"
	// PhaseLocal is used for synchronous mutations with no collaborator call.
	PhaseLocal Phase = "local"
)

var transitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "docupilot",
		Subsystem: "store",
		Name:      "transitions_total",
		Help:      "Committed (or discarded as stale) store transitions.",
	},
	[]string{"store", "op", "phase"},
)

// Ticket identifies one in-flight request for a logical operation key.
//
// Begin* operations hand out a ticket; the matching Complete*/Fail* commits
// only while the ticket is still the newest one for its key. Epoch records the
// container's context epoch at issue time: operations that change what the
// user is looking at (selecting a document, switching the active
// conversation, logging out) advance the epoch, which retires
// context-sensitive results issued before the change.
type Ticket struct {
	Key   string
	Gen   uint64
	Epoch uint64
}

// Valid reports whether t was issued by a container.
func (t Ticket) Valid() bool { return t.Gen > 0 }

// Undo reverts exactly one optimistic mutation. It is captured by the start
// transition and applied unchanged by the failure branch. The zero Undo is a
// no-op.
type Undo[S any] struct {
	revert func(S) S
}

// NewUndo wraps fn as an undo token.
func NewUndo[S any](fn func(S) S) Undo[S] { return Undo[S]{revert: fn} }

// Apply returns s with the captured mutation reverted.
func (u Undo[S]) Apply(s S) S {
	if u.revert == nil {
		return s
	}
	return u.revert(s)
}

// IsZero reports whether the token reverts nothing.
func (u Undo[S]) IsZero() bool { return u.revert == nil }

// generations tracks the newest ticket per logical key plus the context epoch.
// Ticket generations come from one counter per container and are never
// reused, so forgetting a key cannot revive an old ticket. It is only touched
// under the owning container's lock.
type generations struct {
	gens  map[string]uint64
	seq   uint64
	epoch uint64
}

func newGenerations() *generations {
	return &generations{gens: make(map[string]uint64)}
}

func (g *generations) issue(key string) Ticket {
	g.seq++
	g.gens[key] = g.seq
	return Ticket{Key: key, Gen: g.seq, Epoch: g.epoch}
}

// issueUnique issues a ticket under a key no other request shares. It is used
// by operations whose concurrent requests must not supersede each other,
// such as two uploads or two sent messages.
func (g *generations) issueUnique(prefix string) Ticket {
	return g.issue(prefix + "#" + strconv.FormatUint(g.seq+1, 10))
}

// current reports whether t is still the newest ticket for its key.
func (g *generations) current(t Ticket) bool {
	return t.Valid() && g.gens[t.Key] == t.Gen
}

// sameEpoch reports whether the context t was issued in is still in effect.
func (g *generations) sameEpoch(t Ticket) bool { return t.Epoch == g.epoch }

// retire makes t non-current so a duplicate resolution cannot commit twice.
func (g *generations) retire(t Ticket) {
	if g.current(t) {
		delete(g.gens, t.Key)
	}
}

func (g *generations) invalidate(keys ...string) {
	for _, k := range keys {
		delete(g.gens, k)
	}
}

// invalidatePrefix retires every ticket whose key starts with prefix.
func (g *generations) invalidatePrefix(prefix string) {
	for k := range g.gens {
		if strings.HasPrefix(k, prefix) {
			delete(g.gens, k)
		}
	}
}

// pending reports whether any current ticket's key starts with prefix.
func (g *generations) pending(prefix string) bool {
	for k := range g.gens {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// advance moves to a new context epoch.
func (g *generations) advance() { g.epoch++ }

// reset retires every outstanding ticket and advances the epoch.
func (g *generations) reset() {
	clear(g.gens)
	g.epoch++
}
