package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"sportsbet/internal/dataloader"
	"sportsbet/internal/websocket"
	"sportsbet/internal/wizard"
)

// SessionCookie carries the wizard session ID between requests.
const SessionCookie = "sportsbet_session"

// Session binds one browser to its own wizard controller and websocket
// hub. Sessions never share pipeline state.
type Session struct {
	ID         string
	Controller *wizard.Controller
	Hub        *websocket.Hub

	lastSeen time.Time
}

// SessionManager creates sessions on demand and evicts them after they
// sit idle for the configured TTL.
type SessionManager struct {
	provider dataloader.Provider
	workers  int64
	ttl      time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionManager creates a session manager. workers bounds each
// session's fetch worker pool; ttl bounds session idle time.
func NewSessionManager(provider dataloader.Provider, workers int64, ttl time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		provider: provider,
		workers:  workers,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "http.sessions")),
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the idle-session eviction loop.
func (m *SessionManager) Start() {
	go m.evictLoop()
}

// Shutdown stops every live session and the eviction loop.
func (m *SessionManager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		sess.Controller.Stop()
		sess.Hub.Stop()
		delete(m.sessions, id)
	}
}

// GetOrCreate returns the request's session, creating a fresh one (and
// setting the session cookie) when none exists.
func (m *SessionManager) GetOrCreate(w http.ResponseWriter, r *http.Request) *Session {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if sess, ok := m.lookup(cookie.Value); ok {
			return sess
		}
	}

	sess := m.create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// Lookup returns the request's session without creating one.
func (m *SessionManager) Lookup(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return m.lookup(cookie.Value)
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if ok {
		sess.lastSeen = time.Now()
	}
	return sess, ok
}

func (m *SessionManager) create() *Session {
	bus := wizard.NewBus()
	hub := websocket.NewHub(m.logger)
	hub.AttachBus(bus)
	hub.Start()

	ctrl := wizard.NewController(m.provider, bus, m.workers, m.logger)
	ctrl.Start(m.ctx)

	sess := &Session{
		ID:         uuid.New().String(),
		Controller: ctrl,
		Hub:        hub,
		lastSeen:   time.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session created",
		slog.String("session_id", sess.ID),
		slog.Int("total_sessions", total))
	return sess
}

func (m *SessionManager) evictLoop() {
	interval := m.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.evictIdle(time.Now())
		}
	}
}

func (m *SessionManager) evictIdle(now time.Time) {
	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if now.Sub(sess.lastSeen) > m.ttl {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Stop()
		sess.Hub.Stop()
		m.logger.Info("session evicted", slog.String("session_id", sess.ID))
	}
}
