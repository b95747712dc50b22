package store

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Entry is one committed conversation message. Entries are immutable.
type Entry struct {
	ID        int64
	Text      string
	Sender    Sender
	Timestamp time.Time
}

// ConversationState is the value held by a ConversationStore. Logs is keyed
// by document; an absent key is an empty log. Active names the log the user
// is looking at.
type ConversationState struct {
	Logs    map[DocumentID][]Entry
	Active  DocumentID
	Loading bool
	Sending bool
	Error   string
}

func NewConversationState() ConversationState {
	return ConversationState{Logs: make(map[DocumentID][]Entry)}
}

func (s ConversationState) clone() ConversationState {
	logs := make(map[DocumentID][]Entry, len(s.Logs))
	for k, v := range s.Logs {
		logs[k] = slices.Clone(v)
	}
	s.Logs = logs
	return s
}

// Log returns the entries stored under id.
func (s ConversationState) Log(id DocumentID) []Entry { return s.Logs[id] }

// ActiveLog returns the entries of the active log.
func (s ConversationState) ActiveLog() []Entry {
	if s.Active == "" {
		return nil
	}
	return s.Logs[s.Active]
}

// Append returns s with e added to the end of id's log. Other logs are
// untouched.
func (s ConversationState) Append(id DocumentID, e Entry) ConversationState {
	s.Logs = maps.Clone(s.Logs)
	s.Logs[id] = append(slices.Clip(s.Logs[id]), e)
	return s
}

// Replace overwrites id's log.
func (s ConversationState) Replace(id DocumentID, entries []Entry) ConversationState {
	s.Logs = maps.Clone(s.Logs)
	s.Logs[id] = slices.Clone(entries)
	if s.Logs[id] == nil {
		s.Logs[id] = []Entry{}
	}
	return s
}

// Drop removes id's log entirely.
func (s ConversationState) Drop(id DocumentID) ConversationState {
	s.Logs = maps.Clone(s.Logs)
	delete(s.Logs, id)
	return s
}

// Sequencer hands out client-local entry ids. Ids are wall-clock milliseconds
// bumped past the previous id, so they stay strictly increasing under rapid
// calls and clock regressions.
type Sequencer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewSequencer(now func() time.Time) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{now: now}
}

// Next returns a fresh id and the timestamp it was derived from.
func (q *Sequencer) Next() (int64, time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ts := q.now()
	id := ts.UnixMilli()
	if id <= q.last {
		id = q.last + 1
	}
	q.last = id
	return id, ts
}

// ConversationStore owns the per-document message logs and the active log
// pointer.
type ConversationStore struct {
	c   *container[ConversationState]
	seq *Sequencer
}

func NewConversationStore(log zerolog.Logger, seq *Sequencer) *ConversationStore {
	if seq == nil {
		seq = NewSequencer(nil)
	}
	return &ConversationStore{c: newContainer("conversations", NewConversationState(), log), seq: seq}
}

func (s *ConversationStore) State() ConversationState { return s.c.snapshot() }

// Active returns a copy of the active log.
func (s *ConversationStore) Active() []Entry { return s.State().ActiveLog() }

// ActiveID returns the active document key.
func (s *ConversationStore) ActiveID() DocumentID { return s.State().Active }

// Log returns a copy of id's log.
func (s *ConversationStore) Log(id DocumentID) []Entry { return s.State().Log(id) }

func (s *ConversationStore) Subscribe(fn func(ConversationState)) (cancel func()) {
	return s.c.subscribe(fn)
}

// SetActive points the active log at id. The logs themselves are untouched;
// an id with no log reads as empty. Changing the active key retires
// history loads issued for the previous one.
func (s *ConversationStore) SetActive(id DocumentID) {
	s.c.commit("set_active", PhaseLocal, func(g *generations, st ConversationState) (ConversationState, bool) {
		if st.Active != id {
			g.advance()
		}
		st.Active = id
		return st, true
	})
}

func (s *ConversationStore) BeginLoadHistory(id DocumentID) Ticket {
	return s.c.begin("load_history", "history:"+string(id), func(st ConversationState) ConversationState {
		st.Loading = true
		st.Error = ""
		return st
	})
}

// CompleteLoadHistory overwrites id's log with the authoritative history.
// The log is activated unless the active key changed after the load began.
func (s *ConversationStore) CompleteLoadHistory(t Ticket, id DocumentID, entries []Entry) bool {
	return s.c.commit("load_history", PhaseSuccess, func(g *generations, st ConversationState) (ConversationState, bool) {
		if !g.current(t) {
			return st, false
		}
		g.retire(t)
		st = st.Replace(id, entries)
		if g.sameEpoch(t) && st.Active != id {
			g.advance()
			st.Active = id
		}
		st.Loading = false
		st.Error = ""
		return st, true
	})
}

// FailLoadHistory records msg; existing logs are kept.
func (s *ConversationStore) FailLoadHistory(t Ticket, msg string) bool {
	return s.c.resolve("load_history", PhaseFailure, t, func(st ConversationState) ConversationState {
		st.Loading = false
		st.Error = msg
		return st
	})
}

// BeginSend optimistically appends a user entry to the active log. It returns
// the document the entry went to, so the reply can be filed under the same
// key even if the active log changes meanwhile.
func (s *ConversationStore) BeginSend(text string) (Ticket, DocumentID, Undo[ConversationState], error) {
	var (
		t    Ticket
		id   DocumentID
		undo Undo[ConversationState]
		err  error
	)
	s.c.commit("send", PhaseStart, func(g *generations, st ConversationState) (ConversationState, bool) {
		if st.Active == "" {
			err = ErrNoActiveConversation
			return st, false
		}
		id = st.Active
		eid, ts := s.seq.Next()
		_, existed := st.Logs[id]
		undo = NewUndo(func(cur ConversationState) ConversationState {
			log := cur.Logs[id]
			i := slices.IndexFunc(log, func(e Entry) bool { return e.ID == eid })
			if i < 0 {
				return cur
			}
			if !existed && len(log) == 1 {
				return cur.Drop(id)
			}
			cur.Logs = maps.Clone(cur.Logs)
			cur.Logs[id] = slices.Delete(slices.Clone(log), i, i+1)
			return cur
		})
		t = g.issueUnique("send:" + string(id))
		st = st.Append(id, Entry{ID: eid, Text: text, Sender: SenderUser, Timestamp: ts})
		st.Sending = true
		st.Error = ""
		return st, true
	})
	return t, id, undo, err
}

// CompleteSend appends the assistant reply to id's log. Sending stays set
// while other sends are in flight.
func (s *ConversationStore) CompleteSend(t Ticket, id DocumentID, reply string) bool {
	return s.c.settle("send", PhaseSuccess, t, "send:", func(st ConversationState, busy bool) ConversationState {
		eid, ts := s.seq.Next()
		st = st.Append(id, Entry{ID: eid, Text: reply, Sender: SenderAssistant, Timestamp: ts})
		st.Sending = busy
		st.Error = ""
		return st
	})
}

// FailSend removes the optimistic entry captured by undo and records msg.
func (s *ConversationStore) FailSend(t Ticket, undo Undo[ConversationState], msg string) bool {
	return s.c.settle("send", PhaseFailure, t, "send:", func(st ConversationState, busy bool) ConversationState {
		st = undo.Apply(st)
		st.Sending = busy
		st.Error = msg
		return st
	})
}

func (s *ConversationStore) BeginClear(id DocumentID) Ticket {
	return s.c.beginUnique("clear", "clear:"+string(id), func(st ConversationState) ConversationState {
		st.Error = ""
		return st
	})
}

// CompleteClear empties id's log after the collaborator confirmed it.
func (s *ConversationStore) CompleteClear(t Ticket, id DocumentID) bool {
	return s.c.commit("clear", PhaseSuccess, func(g *generations, st ConversationState) (ConversationState, bool) {
		if !g.current(t) {
			return st, false
		}
		g.retire(t)
		g.invalidate("history:" + string(id))
		return st.Drop(id), true
	})
}

func (s *ConversationStore) FailClear(t Ticket, msg string) bool {
	return s.c.resolve("clear", PhaseFailure, t, func(st ConversationState) ConversationState {
		st.Error = msg
		return st
	})
}

// Clear drops id's log locally. The active pointer is kept; it reads as an
// empty log.
func (s *ConversationStore) Clear(id DocumentID) {
	s.c.commit("clear", PhaseLocal, func(g *generations, st ConversationState) (ConversationState, bool) {
		g.invalidate("history:" + string(id))
		return st.Drop(id), true
	})
}

// Remove drops id's log and detaches the active pointer if it was id. It is
// used when the document itself is gone.
func (s *ConversationStore) Remove(id DocumentID) {
	s.c.commit("remove", PhaseLocal, func(g *generations, st ConversationState) (ConversationState, bool) {
		g.invalidate("history:" + string(id))
		g.invalidatePrefix("send:" + string(id) + "#")
		st = st.Drop(id)
		if st.Active == id {
			g.advance()
			st.Active = ""
		}
		st.Sending = g.pending("send:")
		return st, true
	})
}

// ClearAll empties every log, detaches the active pointer and retires all
// requests in flight.
func (s *ConversationStore) ClearAll() {
	s.c.commit("clear_all", PhaseLocal, func(g *generations, _ ConversationState) (ConversationState, bool) {
		g.reset()
		return NewConversationState(), true
	})
}

func (s *ConversationStore) ClearError() {
	s.c.apply("clear_error", PhaseLocal, func(st ConversationState) ConversationState {
		st.Error = ""
		return st
	})
}
