// Package session maps session identifiers to live economy sessions.
// Each session has its own lock so concurrent requests for one player are
// serialized while different players proceed independently.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/hexwatt/internal/engine"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrFull     = errors.New("session limit reached")
)

// Factory builds a fresh session.
type Factory func() (*engine.Session, error)

// Store holds live sessions keyed by id.
type Store struct {
	newSession  Factory
	idleTimeout time.Duration
	maxSessions int

	// Now is the clock; tests may replace it.
	Now func() time.Time
	// OnEvict receives the final snapshot of each session removed by Sweep,
	// called without locks held.
	OnEvict func(id string, final engine.Snapshot)

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	sess     *engine.Session
	lastSeen time.Time
	removed  bool // Set by Sweep under mu; the session is frozen afterwards
}

// NewStore creates a store. maxSessions 0 means unlimited.
func NewStore(factory Factory, idleTimeout time.Duration, maxSessions int) *Store {
	return &Store{
		newSession:  factory,
		idleTimeout: idleTimeout,
		maxSessions: maxSessions,
		Now:         time.Now,
		entries:     make(map[string]*entry),
	}
}

// Create starts a new session and returns its id with an initial snapshot.
func (st *Store) Create() (string, engine.Snapshot, error) {
	sess, err := st.newSession()
	if err != nil {
		return "", engine.Snapshot{}, fmt.Errorf("new session: %w", err)
	}
	id := uuid.NewString()
	snap := sess.Snapshot()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.maxSessions > 0 && len(st.entries) >= st.maxSessions {
		return "", engine.Snapshot{}, ErrFull
	}
	st.entries[id] = &entry{sess: sess, lastSeen: st.Now()}
	return id, snap, nil
}

// With runs fn while holding the session's lock and marks it active.
func (st *Store) With(id string, fn func(*engine.Session) error) error {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.lastSeen = st.Now()
	return fn(e.sess)
}

// View runs fn under the session's lock without refreshing its activity.
func (st *Store) View(id string, fn func(*engine.Session) error) error {
	st.mu.RLock()
	e, ok := st.entries[id]
	st.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn(e.sess)
}

// TickAll ticks every live session once and returns how many it ticked.
// Ticks do not count as activity. onTicked, if non-nil, runs under each
// session's lock after its tick.
func (st *Store) TickAll(onTicked func(id string, s *engine.Session, rep engine.TickReport)) int {
	st.mu.RLock()
	ids := make([]string, 0, len(st.entries))
	entries := make([]*entry, 0, len(st.entries))
	for id, e := range st.entries {
		ids = append(ids, id)
		entries = append(entries, e)
	}
	st.mu.RUnlock()

	ticked := 0
	for i, e := range entries {
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		rep := e.sess.Tick()
		if onTicked != nil {
			onTicked(ids[i], e.sess, rep)
		}
		e.mu.Unlock()
		ticked++
	}
	return ticked
}

// Sweep removes sessions idle for longer than the idle timeout and
// returns their ids.
func (st *Store) Sweep() []string {
	now := st.Now()

	type evicted struct {
		id    string
		final engine.Snapshot
	}
	var gone []evicted

	st.mu.Lock()
	for id, e := range st.entries {
		e.mu.Lock()
		if now.Sub(e.lastSeen) > st.idleTimeout {
			e.removed = true
			delete(st.entries, id)
			gone = append(gone, evicted{id: id, final: e.sess.Snapshot()})
		}
		e.mu.Unlock()
	}
	st.mu.Unlock()

	ids := make([]string, 0, len(gone))
	for _, g := range gone {
		ids = append(ids, g.id)
		slog.Info("session evicted", "session", g.id, "ticks", g.final.Ticks, "energy", g.final.Energy)
		if st.OnEvict != nil {
			st.OnEvict(g.id, g.final)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// IDs returns the live session ids in sorted order.
func (st *Store) IDs() []string {
	st.mu.RLock()
	ids := make([]string, 0, len(st.entries))
	for id := range st.entries {
		ids = append(ids, id)
	}
	st.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
