// Package history keeps the bounded, persisted log of completed
// calculations.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-chi-calculator/internal/storage"
)

const (
	// DefaultKey is the store key the desktop calculator uses.
	DefaultKey = "calculatorHistory"
	// DefaultCapacity is the number of entries kept before the oldest is
	// evicted.
	DefaultCapacity = 50
)

// Entry is one completed calculation. Timestamp is Unix milliseconds.
type Entry struct {
	Expression string `json:"expression"`
	Result     string `json:"result"`
	Timestamp  int64  `json:"timestamp"`
}

// Sink receives the full ledger, newest first, after every mutation.
type Sink interface {
	ShowHistory([]Entry)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func([]Entry)

func (f SinkFunc) ShowHistory(entries []Entry) { f(entries) }

// Ledger is an ordered log of entries, newest first. It is not safe for
// concurrent use.
type Ledger struct {
	store    storage.Store
	key      string
	capacity int
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
	sink     Sink

	entries []Entry
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithKey(key string) Option { return func(l *Ledger) { l.key = key } }

func WithCapacity(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithLogger(logger *zap.Logger) Option { return func(l *Ledger) { l.logger = logger } }

func WithSink(s Sink) Option { return func(l *Ledger) { l.sink = s } }

// WithTimeout bounds every store call.
func WithTimeout(d time.Duration) Option { return func(l *Ledger) { l.timeout = d } }

// New returns an empty ledger backed by store. Call Load to restore
// persisted entries.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		key:      DefaultKey,
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key returns the store key the ledger persists to.
func (l *Ledger) Key() string { return l.key }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns a copy of the entries, newest first.
func (l *Ledger) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Load replaces the in-memory entries with the persisted ones. A missing key
// leaves the ledger empty. A payload that does not decode is logged and
// treated as empty; it is overwritten by the next mutation.
func (l *Ledger) Load(ctx context.Context) error {
	ctx, cancel := l.context(ctx)
	defer cancel()

	raw, err := l.store.Get(ctx, l.key)
	if errors.Is(err, storage.ErrNotFound) {
		l.entries = nil
		l.notify()
		return nil
	}
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.logger.Warn("discarding unreadable history",
			zap.String("key", l.key),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		entries = nil
	}
	if len(entries) > l.capacity {
		entries = entries[:l.capacity]
	}

	l.entries = entries
	l.notify()
	return nil
}

// Append records a calculation as the newest entry, evicting the oldest
// past capacity, then persists. It satisfies calculator.Recorder.
func (l *Ledger) Append(expression, result string) error {
	entry := Entry{
		Expression: expression,
		Result:     result,
		Timestamp:  l.now().UnixMilli(),
	}

	entries := make([]Entry, 0, len(l.entries)+1)
	entries = append(entries, entry)
	entries = append(entries, l.entries...)
	if len(entries) > l.capacity {
		entries = entries[:l.capacity]
	}
	l.entries = entries

	return l.persist()
}

// Clear removes every entry and persists the empty ledger.
func (l *Ledger) Clear() error {
	l.entries = nil
	return l.persist()
}

// SelectEntry returns the result of the entry at index. ok is false when the
// index is out of range.
func (l *Ledger) SelectEntry(index int) (result string, ok bool) {
	if index < 0 || index >= len(l.entries) {
		return "", false
	}
	return l.entries[index].Result, true
}

func (l *Ledger) persist() error {
	defer l.notify()

	entries := l.entries
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	ctx, cancel := l.context(context.Background())
	defer cancel()

	if err := l.store.Set(ctx, l.key, raw); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (l *Ledger) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Ledger) notify() {
	if l.sink != nil {
		l.sink.ShowHistory(l.Entries())
	}
}
