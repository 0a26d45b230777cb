package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"opscenter/internal/logging"
	"opscenter/internal/storage"

	"github.com/jonboulle/clockwork"
)

// DefaultSessionKey is the storage key holding the serialized session.
const DefaultSessionKey = "wk_user_session"

// Gate owns the session state machine. All methods are safe for concurrent
// use.
type Gate struct {
	mu sync.Mutex

	state     State
	session   *Session
	lastErr   string
	ephemeral bool
	pending   *LoginTask
	closed    bool

	initStarted bool
	initDone    chan struct{}

	store     storage.Store
	key       string
	provider  IdentityProvider
	roles     *RoleMapper
	clock     clockwork.Clock
	initDelay time.Duration

	subs    map[int]chan Snapshot
	nextSub int

	wg sync.WaitGroup
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock used for the startup delay.
func WithClock(c clockwork.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithInitDelay sets how long Initialize waits before reading storage.
func WithInitDelay(d time.Duration) Option {
	return func(g *Gate) { g.initDelay = d }
}

// WithSessionKey overrides DefaultSessionKey.
func WithSessionKey(key string) Option {
	return func(g *Gate) {
		if key != "" {
			g.key = key
		}
	}
}

// WithRoleMapper sets how provider groups become roles.
func WithRoleMapper(m *RoleMapper) Option {
	return func(g *Gate) { g.roles = m }
}

// NewGate creates a gate in the Initializing state.
func NewGate(store storage.Store, provider IdentityProvider, opts ...Option) *Gate {
	g := &Gate{
		state:    StateInitializing,
		initDone: make(chan struct{}),
		store:    store,
		key:      DefaultSessionKey,
		provider: provider,
		roles:    &RoleMapper{groups: map[string]Role{}, fallback: RoleViewer},
		clock:    clockwork.NewRealClock(),
		subs:     make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize performs the startup lookup: it waits out the init delay, reads
// the stored session and settles on Authenticated or Unauthenticated. It
// never fails; an unreadable or malformed record counts as no session.
// Concurrent and repeated calls wait for the first lookup and return the
// current state.
func (g *Gate) Initialize(ctx context.Context) State {
	g.mu.Lock()
	if g.initStarted {
		g.mu.Unlock()
		select {
		case <-g.initDone:
		case <-ctx.Done():
		}
		return g.State()
	}
	g.initStarted = true
	g.mu.Unlock()

	if g.initDelay > 0 {
		select {
		case <-g.clock.After(g.initDelay):
		case <-ctx.Done():
			logging.SessionDebug("startup delay interrupted: %v", ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	defer close(g.initDone)

	if s := g.readStoredLocked(); s != nil {
		g.session = s
		g.state = StateAuthenticated
		logging.Session("restored session for %s (%s)", s.ID, s.Role)
	} else {
		g.state = StateUnauthenticated
		logging.Session("no stored session, showing login")
	}
	g.publishLocked()
	return g.state
}

// readStoredLocked returns the persisted session or nil. Malformed records
// are removed.
func (g *Gate) readStoredLocked() *Session {
	data, err := g.store.Get(g.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		logging.SessionWarn("stored session unreadable, treating as signed out: %v", err)
		return nil
	}
	s, err := decodeSession(data)
	if err != nil {
		logging.SessionWarn("discarding stored session: %v", err)
		if rmErr := g.store.Remove(g.key); rmErr != nil {
			logging.SessionWarn("failed to remove malformed session: %v", rmErr)
		}
		return nil
	}
	return s
}

// Login starts a login round trip. While one is in flight the same task is
// returned; when already Authenticated a resolved task carrying the current
// session is returned and the provider is not contacted. Login before the
// startup lookup finishes resolves to ErrNotReady.
func (g *Gate) Login(ctx context.Context) *LoginTask {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return completedTask(nil, ErrGateClosed)
	}
	switch g.state {
	case StateAuthenticating:
		return g.pending
	case StateAuthenticated:
		return completedTask(g.session.Clone(), nil)
	case StateInitializing:
		return completedTask(nil, ErrNotReady)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	task := newLoginTask(cancel)
	g.pending = task
	g.state = StateAuthenticating
	g.lastErr = ""
	g.publishLocked()
	logging.Auth("login started via %s", g.provider.Name())

	g.wg.Add(1)
	go g.runLogin(taskCtx, task)
	return task
}

func (g *Gate) runLogin(ctx context.Context, task *LoginTask) {
	defer g.wg.Done()
	defer task.cancel()

	id, err := g.provider.Authenticate(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != task {
		// Superseded by Logout or Close; state was already settled there.
		task.finish(nil, ErrLoginCancelled)
		return
	}
	g.pending = nil

	if errors.Is(ctx.Err(), context.Canceled) {
		g.state = StateUnauthenticated
		g.publishLocked()
		logging.Auth("login cancelled")
		task.finish(nil, ErrLoginCancelled)
		return
	}

	var s *Session
	if err == nil {
		s, err = g.roles.session(id)
	}
	if err != nil {
		loginErr := &LoginError{Provider: g.provider.Name(), Err: err}
		g.state = StateUnauthenticated
		g.lastErr = loginErr.UserMessage()
		g.publishLocked()
		logging.AuthError("%v", loginErr)
		task.finish(nil, loginErr)
		return
	}

	g.ephemeral = false
	data, encErr := encodeSession(s)
	if encErr == nil {
		encErr = g.store.Set(g.key, data)
	}
	if encErr != nil {
		g.ephemeral = true
		logging.SessionWarn("session not persisted, it will end with this process: %v", encErr)
	}

	g.session = s
	g.state = StateAuthenticated
	g.publishLocked()
	logging.Auth("signed in as %s (%s)", s.ID, s.Role)
	task.finish(s.Clone(), nil)
}

// Logout ends the session and removes the persisted record. An in-flight
// login is cancelled. Logging out while signed out is a no-op apart from the
// (idempotent) record removal.
func (g *Gate) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		g.pending.cancel()
		g.pending = nil
	}
	if err := g.store.Remove(g.key); err != nil {
		logging.SessionWarn("failed to remove stored session: %v", err)
	}
	wasSignedIn := g.session != nil
	g.session = nil
	g.ephemeral = false
	g.lastErr = ""
	if g.state != StateInitializing {
		g.state = StateUnauthenticated
		g.publishLocked()
	}
	if wasSignedIn {
		logging.Auth("signed out")
	}
}

// Sync re-reads the persisted record and follows changes made by another
// process: a removed record signs this gate out, a newly written one signs
// it in. Sync does nothing while a lookup or login is in flight, and an
// ephemeral session is not signed out by the absence of a record.
func (g *Gate) Sync() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed || g.state.Loading() {
		return
	}
	stored := g.readStoredLocked()
	switch {
	case g.state == StateAuthenticated && stored == nil:
		if g.ephemeral {
			return
		}
		g.session = nil
		g.state = StateUnauthenticated
		logging.Session("session removed by another process")
	case g.state == StateUnauthenticated && stored != nil:
		g.session = stored
		g.state = StateAuthenticated
		g.lastErr = ""
		logging.Session("session for %s created by another process", stored.ID)
	case g.state == StateAuthenticated && *stored != *g.session:
		g.session = stored
		g.ephemeral = false
		logging.Session("session replaced by another process")
	default:
		return
	}
	g.publishLocked()
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Session returns a copy of the current session, or nil.
func (g *Gate) Session() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.Clone()
}

// IsAuthenticated reports whether a session is present.
func (g *Gate) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session != nil
}

// LastError is the message from the most recent failed login, cleared by the
// next attempt.
func (g *Gate) LastError() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Snapshot returns a consistent view of the gate.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Gate) snapshotLocked() Snapshot {
	return Snapshot{
		State:     g.state,
		Session:   g.session.Clone(),
		Err:       g.lastErr,
		Ephemeral: g.ephemeral,
	}
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Slow readers only see the latest snapshot. The returned func
// unsubscribes and closes the channel.
func (g *Gate) Subscribe() (<-chan Snapshot, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if g.closed {
		close(ch)
		return ch, func() {}
	}
	id := g.nextSub
	g.nextSub++
	g.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if c, ok := g.subs[id]; ok {
				delete(g.subs, id)
				close(c)
			}
		})
	}
}

func (g *Gate) publishLocked() {
	snap := g.snapshotLocked()
	for _, ch := range g.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// Close cancels any in-flight login, waits for it to unwind and closes all
// subscriber channels. The persisted session is left in place.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	if g.pending != nil {
		g.pending.cancel()
		g.pending = nil
		g.state = StateUnauthenticated
	}
	for id, ch := range g.subs {
		delete(g.subs, id)
		close(ch)
	}
	g.mu.Unlock()

	g.wg.Wait()
}
