package store

import (
	"sync"

	"github.com/rs/zerolog"
)

// cloner is implemented by every state value. clone returns a copy that shares
// no mutable memory with the receiver.
type cloner[S any] interface {
	clone() S
}

// container holds one store's state value. All mutations run to completion
// under mu; observers are notified after the lock is released, in commit
// order per container.
type container[S cloner[S]] struct {
	name string
	log  zerolog.Logger

	mu    sync.Mutex
	state S
	gens  *generations

	obsMu     sync.Mutex
	observers map[int]func(S)
	nextObs   int
	notifyMu  sync.Mutex
}

func newContainer[S cloner[S]](name string, initial S, log zerolog.Logger) *container[S] {
	return &container[S]{
		name:      name,
		log:       log.With().Str("store", name).Logger(),
		state:     initial,
		gens:      newGenerations(),
		observers: make(map[int]func(S)),
	}
}

// snapshot returns a deep copy of the current state.
func (c *container[S]) snapshot() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// commit runs fn under the lock. fn returns the next state and whether it
// should replace the current one. A declined commit is recorded as stale and
// observers are not notified.
func (c *container[S]) commit(op string, phase Phase, fn func(g *generations, s S) (S, bool)) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	next, ok := fn(c.gens, c.state)
	if ok {
		c.state = next
	}
	snap := c.state.clone()
	c.mu.Unlock()

	if !ok {
		transitionsTotal.WithLabelValues(c.name, op, string(PhaseStale)).Inc()
		c.log.Debug().Str("op", op).Str("phase", string(phase)).Msg("transition declined")
		return false
	}
	transitionsTotal.WithLabelValues(c.name, op, string(phase)).Inc()
	c.notify(snap)
	return true
}

// apply commits an unconditional transition.
func (c *container[S]) apply(op string, phase Phase, fn func(S) S) {
	c.commit(op, phase, func(_ *generations, s S) (S, bool) { return fn(s), true })
}

// begin issues a ticket for key and commits the start transition atomically.
func (c *container[S]) begin(op, key string, fn func(S) S) Ticket {
	var t Ticket
	c.commit(op, PhaseStart, func(g *generations, s S) (S, bool) {
		t = g.issue(key)
		return fn(s), true
	})
	return t
}

// resolve commits fn only while t is current, then retires t.
func (c *container[S]) resolve(op string, phase Phase, t Ticket, fn func(S) S) bool {
	return c.commit(op, phase, func(g *generations, s S) (S, bool) {
		if !g.current(t) {
			return s, false
		}
		g.retire(t)
		return fn(s), true
	})
}

// resolveInContext is resolve that additionally requires the context epoch
// t was issued in to still be in effect.
func (c *container[S]) resolveInContext(op string, phase Phase, t Ticket, fn func(S) S) bool {
	return c.commit(op, phase, func(g *generations, s S) (S, bool) {
		if !g.current(t) || !g.sameEpoch(t) {
			return s, false
		}
		g.retire(t)
		return fn(s), true
	})
}

func (c *container[S]) subscribe(fn func(S)) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

func (c *container[S]) notify(s S) {
	c.obsMu.Lock()
	fns := make([]func(S), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()
	for _, fn := range fns {
		fn(s.clone())
	}
}

// beginUnique is begin with a ticket that no later request supersedes.
func (c *container[S]) beginUnique(op, prefix string, fn func(S) S) Ticket {
	var t Ticket
	c.commit(op, PhaseStart, func(g *generations, s S) (S, bool) {
		t = g.issueUnique(prefix)
		return fn(s), true
	})
	return t
}

// settle is resolve for requests sharing a beginUnique prefix. fn is told
// whether sibling requests under prefix are still in flight once t retires.
func (c *container[S]) settle(op string, phase Phase, t Ticket, prefix string, fn func(s S, busy bool) S) bool {
	return c.commit(op, phase, func(g *generations, s S) (S, bool) {
		if !g.current(t) {
			return s, false
		}
		g.retire(t)
		return fn(s, g.pending(prefix)), true
	})
}
