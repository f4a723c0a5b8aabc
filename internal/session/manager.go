package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ClientFactory returns the auth client bound to one session id.
type ClientFactory func(sid string) AuthClient

type entry struct {
	store    *Store
	lastSeen time.Time
}

// Manager owns the stores of all live browser sessions. Stores are created
// and initialized on first use and disposed after sitting idle for the TTL.
type Manager struct {
	factory  ClientFactory
	profiles Profiles
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	evicted []func(sid string)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewManager(factory ClientFactory, profiles Profiles, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	m := &Manager{
		factory:  factory,
		profiles: profiles,
		ttl:      ttl,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		now:      time.Now,
		entries:  make(map[string]*entry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.janitor(sweepInterval(ttl))
	return m
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}

// OnEvict registers fn to run after the store of a session is disposed by
// Drop, the idle sweep or Close.
func (m *Manager) OnEvict(fn func(sid string)) {
	m.mu.Lock()
	m.evicted = append(m.evicted, fn)
	m.mu.Unlock()
}

func (m *Manager) notifyEvicted(sids []string) {
	m.mu.Lock()
	hooks := m.evicted
	m.mu.Unlock()
	for _, sid := range sids {
		for _, fn := range hooks {
			fn(sid)
		}
	}
}

// Get returns the initialized store of sid, creating it on first use.
func (m *Manager) Get(ctx context.Context, sid string) *Store {
	m.mu.Lock()
	e, ok := m.entries[sid]
	if !ok {
		e = &entry{store: m.newStore(sid)}
		m.entries[sid] = e
	}
	e.lastSeen = m.now()
	m.mu.Unlock()

	e.store.Initialize(ctx)
	return e.store
}

// Lookup returns the store of sid without keeping a new one for an
// anonymous visitor. A live store is returned as is. Otherwise the session
// is restored from token storage and kept only when it comes up signed in;
// nil means sid has no session.
func (m *Manager) Lookup(ctx context.Context, sid string) *Store {
	m.mu.Lock()
	e, ok := m.entries[sid]
	if ok {
		e.lastSeen = m.now()
	}
	m.mu.Unlock()
	if ok {
		e.store.Initialize(ctx)
		return e.store
	}

	store := m.newStore(sid)
	store.Initialize(ctx)
	if !store.Snapshot().Authenticated() {
		store.Dispose()
		return nil
	}

	m.mu.Lock()
	if e, ok := m.entries[sid]; ok {
		// A concurrent request registered the session first.
		e.lastSeen = m.now()
		m.mu.Unlock()
		store.Dispose()
		e.store.Initialize(ctx)
		return e.store
	}
	m.entries[sid] = &entry{store: store, lastSeen: m.now()}
	m.mu.Unlock()
	return store
}

func (m *Manager) newStore(sid string) *Store {
	return New(m.factory(sid), m.profiles, m.logger.With().Str("sid", shortID(sid)).Logger())
}

// Drop disposes the store of sid, if any.
func (m *Manager) Drop(sid string) {
	m.mu.Lock()
	e, ok := m.entries[sid]
	delete(m.entries, sid)
	m.mu.Unlock()
	if ok {
		e.store.Dispose()
		m.notifyEvicted([]string{sid})
	}
}

// Len reports the number of live stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep disposes every store idle since before now-ttl and returns how many
// were removed.
func (m *Manager) sweep(now time.Time) int {
	cutoff := now.Add(-m.ttl)
	var (
		stale []*Store
		sids  []string
	)
	m.mu.Lock()
	for sid, e := range m.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.store)
			sids = append(sids, sid)
			delete(m.entries, sid)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Dispose()
	}
	m.notifyEvicted(sids)
	return len(stale)
}

func (m *Manager) janitor(interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.sweep(m.now()); n > 0 {
				m.logger.Debug().Int("disposed", n).Msg("swept idle sessions")
			}
		}
	}
}

// Close stops the janitor and disposes every store.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done

		m.mu.Lock()
		entries := m.entries
		m.entries = make(map[string]*entry)
		m.mu.Unlock()
		sids := make([]string, 0, len(entries))
		for sid, e := range entries {
			e.store.Dispose()
			sids = append(sids, sid)
		}
		m.notifyEvicted(sids)
	})
}

// shortID keeps session ids out of logs in full.
func shortID(sid string) string {
	if len(sid) <= 8 {
		return sid
	}
	return sid[:8]
}
