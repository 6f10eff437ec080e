package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/history"
	"go-chi-calculator/internal/storage"
)

// ErrNotFound is returned when a session is neither live nor has persisted
// history to resume from.
var ErrNotFound = errors.New("session not found")

// DefaultIdleTimeout is how long a session stays live without requests.
const DefaultIdleTimeout = 30 * time.Minute

// Session is one remote calculator: an engine and the ledger it records to.
// All access goes through the session mutex, so actions on one session run
// one at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	engine *calculator.Engine
	ledger *history.Ledger

	// lastSeen is guarded by the registry mutex.
	lastSeen time.Time
}

// Dispatch applies a to the engine and returns the resulting readout.
func (s *Session) Dispatch(a calculator.Action) (calculator.Outcome, calculator.Readout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.engine.Dispatch(a)
	return out, s.engine.Readout(), err
}

// Snapshot returns the current readout, whether an operator is pending and
// the number of history entries.
func (s *Session) Snapshot() (calculator.Readout, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, pending := s.engine.Pending()
	return s.engine.Readout(), pending, s.ledger.Len()
}

func (s *Session) History() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Entries()
}

func (s *Session) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ledger.Clear()
}

// SelectHistory loads the result of history entry index as the current
// operand. ok is false when index is out of range.
func (s *Session) SelectHistory(index int) (calculator.Readout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, ok := s.ledger.SelectEntry(index)
	if !ok {
		return calculator.Readout{}, false
	}
	s.engine.LoadOperand(result)
	return s.engine.Readout(), true
}

// HistoryKey is the store key a session's ledger persists to.
func HistoryKey(id string) string {
	return history.DefaultKey + "/" + id
}

// Registry owns the live sessions.
type Registry struct {
	store    storage.Store
	capacity int
	timeout  time.Duration
	idle     time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

type RegistryOption func(*Registry)

func WithHistoryCapacity(n int) RegistryOption {
	return func(r *Registry) { r.capacity = n }
}

func WithStoreTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.timeout = d }
}

// WithIdleTimeout sets how long a session may go unused before Sweep drops
// it. Zero or less keeps sessions until they are deleted.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(store storage.Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:    store,
		capacity: history.DefaultCapacity,
		idle:     DefaultIdleTimeout,
		logger:   zap.NewNop(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a session with a fresh engine and loads its history.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	s, err := r.open(ctx, uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.now()
	}
	return s, ok
}

// Resume returns the live session id or, when it was dropped or the process
// restarted, rebuilds it from its persisted history. The rebuilt engine
// starts from "0". Ids without persisted history yield ErrNotFound.
func (r *Registry) Resume(ctx context.Context, id string) (*Session, error) {
	if s, ok := r.Get(id); ok {
		return s, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	_, err := r.store.Get(ctx, HistoryKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}

	s, err := r.open(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if live, ok := r.sessions[id]; ok {
		live.lastSeen = r.now()
		return live, nil
	}
	r.sessions[id] = s
	r.logger.Info("calculator session resumed",
		zap.String("session_id", id),
		zap.String("key", s.ledger.Key()),
		zap.Int("history_size", s.ledger.Len()),
	)
	return s, nil
}

func (r *Registry) open(ctx context.Context, id string) (*Session, error) {
	ledger := history.New(r.store,
		history.WithKey(HistoryKey(id)),
		history.WithCapacity(r.capacity),
		history.WithTimeout(r.timeout),
		history.WithLogger(r.logger.With(zap.String("session_id", id))),
	)
	if err := ledger.Load(ctx); err != nil {
		return nil, err
	}

	now := r.now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		engine:    calculator.NewEngine(calculator.WithRecorder(ledger)),
		ledger:    ledger,
		lastSeen:  now,
	}, nil
}

// Remove forgets the session. Its history stays in the store.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Sweep drops sessions idle for longer than the idle timeout and returns how
// many were dropped. Their history stays in the store, so they can be
// resumed.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.idle <= 0 {
		return
	}

	ticker := time.NewTicker(max(r.idle/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("idle calculator sessions dropped", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Collector exposes the live session count to Prometheus.
func (r *Registry) Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "calculator_active_sessions",
		Help: "Number of live calculator sessions.",
	}, func() float64 {
		return float64(r.Len())
	})
}
