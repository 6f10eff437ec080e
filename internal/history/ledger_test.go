package history

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/storage"
)

func fixedClock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
}

func newTestLedger(t *testing.T, store storage.Store, opts ...Option) *Ledger {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock(time.Unix(1700000000, 0)))}, opts...)
	l := New(store, opts...)
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("loading ledger: %v", err)
	}
	return l
}

func TestAppendPrependsNewestFirst(t *testing.T) {
	l := newTestLedger(t, storage.NewMemory())

	if err := l.Append("2 + 3", "5"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append("5 × 2", "10"); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Result != "10" || entries[1].Result != "5" {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	if entries[0].Timestamp <= entries[1].Timestamp {
		t.Fatalf("expected newer timestamp first, got %d then %d", entries[0].Timestamp, entries[1].Timestamp)
	}
}

func TestAppendEvictsOldestPastCapacity(t *testing.T) {
	l := newTestLedger(t, storage.NewMemory())

	for i := 0; i < DefaultCapacity+1; i++ {
		if err := l.Append(fmt.Sprintf("%d + 0", i), fmt.Sprint(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries := l.Entries()
	if len(entries) != DefaultCapacity {
		t.Fatalf("expected %d entries, got %d", DefaultCapacity, len(entries))
	}
	if entries[0].Result != "50" {
		t.Fatalf("expected newest result %q, got %q", "50", entries[0].Result)
	}
	if last := entries[len(entries)-1].Result; last != "1" {
		t.Fatalf("expected oldest surviving result %q, got %q", "1", last)
	}
	for _, e := range entries {
		if e.Result == "0" {
			t.Fatal("expected first-appended entry to be evicted")
		}
	}
}

func TestPersistAndReloadRoundTrip(t *testing.T) {
	store := storage.NewMemory()
	l := newTestLedger(t, store)

	for _, calc := range [][2]string{{"2 + 3", "5"}, {"10 ÷ 4", "2.5"}, {"<b>1</b> + 1", "2"}} {
		if err := l.Append(calc[0], calc[1]); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	reloaded := newTestLedger(t, store)
	if !reflect.DeepEqual(l.Entries(), reloaded.Entries()) {
		t.Fatalf("expected reloaded entries %+v, got %+v", l.Entries(), reloaded.Entries())
	}
}

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	l := newTestLedger(t, storage.NewMemory())
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d entries", l.Len())
	}
}

func TestLoadCorruptPayloadWarnsAndStartsEmpty(t *testing.T) {
	store := storage.NewMemory()
	if err := store.Set(context.Background(), DefaultKey, []byte("{not json")); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	core, logs := observer.New(zap.WarnLevel)
	l := newTestLedger(t, store, WithLogger(zap.New(core)))

	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d entries", l.Len())
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	if entries[0].Message != "discarding unreadable history" {
		t.Fatalf("unexpected warning %q", entries[0].Message)
	}
	if entries[0].ContextMap()["key"] != DefaultKey {
		t.Fatalf("expected key field %q, got %#v", DefaultKey, entries[0].ContextMap()["key"])
	}
}

func TestLoadTruncatesOversizePayload(t *testing.T) {
	store := storage.NewMemory()
	seed := New(store, WithCapacity(10))
	for i := 0; i < 10; i++ {
		if err := seed.Append("x", fmt.Sprint(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	l := newTestLedger(t, store, WithCapacity(3))
	if l.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", l.Len())
	}
	if r, _ := l.SelectEntry(0); r != "9" {
		t.Fatalf("expected newest entry kept, got %q", r)
	}
}

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) ([]byte, error) { return nil, s.err }
func (s failingStore) Set(context.Context, string, []byte) error { return s.err }

func TestStoreFailuresAreReturned(t *testing.T) {
	boom := errors.New("boom")
	l := New(failingStore{err: boom})

	if err := l.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected load to wrap %v, got %v", boom, err)
	}
	if err := l.Append("1 + 1", "2"); !errors.Is(err, boom) {
		t.Fatalf("expected append to wrap %v, got %v", boom, err)
	}
	if l.Len() != 1 {
		t.Fatalf("expected in-memory entry to survive a failed save, got %d", l.Len())
	}
}

func TestClearPersistsEmptyList(t *testing.T) {
	store := storage.NewMemory()
	l := newTestLedger(t, store)
	if err := l.Append("1 + 1", "2"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	raw, err := store.Get(context.Background(), DefaultKey)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("expected persisted %q, got %q", "[]", raw)
	}
}

func TestSelectEntry(t *testing.T) {
	l := newTestLedger(t, storage.NewMemory())
	_ = l.Append("2 + 3", "5")
	_ = l.Append("5 × 2", "10")

	if got, ok := l.SelectEntry(1); !ok || got != "5" {
		t.Fatalf("expected (5, true), got (%q, %t)", got, ok)
	}
	for _, idx := range []int{-1, 2, 100} {
		if _, ok := l.SelectEntry(idx); ok {
			t.Fatalf("expected index %d to be out of range", idx)
		}
	}
}

func TestSinkNotifiedOnEveryMutation(t *testing.T) {
	var calls [][]Entry
	l := newTestLedger(t, storage.NewMemory(), WithSink(SinkFunc(func(entries []Entry) {
		calls = append(calls, entries)
	})))

	_ = l.Append("1 + 1", "2")
	_ = l.Clear()

	// Load, Append, Clear.
	if len(calls) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(calls))
	}
	if len(calls[1]) != 1 || len(calls[2]) != 0 {
		t.Fatalf("unexpected notification payloads %+v", calls)
	}
}

func TestLedgerRecordsEngineCalculations(t *testing.T) {
	l := newTestLedger(t, storage.NewMemory())
	e := calculator.NewEngine(calculator.WithRecorder(l))

	for _, key := range []string{"2", "+", "3", "+", "4", "="} {
		a, _ := calculator.ActionForKey(key)
		if _, err := e.Dispatch(a); err != nil {
			t.Fatalf("dispatch %q: %v", key, err)
		}
	}

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Expression != "5 + 4" || entries[0].Result != "9" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}

	result, _ := l.SelectEntry(0)
	e.LoadOperand(result)
	if e.Operand() != "9" {
		t.Fatalf("expected operand %q, got %q", "9", e.Operand())
	}
}

func TestRenderHTMLEscapesExpressions(t *testing.T) {
	var b strings.Builder
	err := RenderHTML(&b, []Entry{
		{Expression: `<script>alert("x")</script>`, Result: "12345.5"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	out := b.String()
	if strings.Contains(out, "<script>") {
		t.Fatalf("expected expression to be escaped, got %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Fatalf("expected escaped markup, got %s", out)
	}
	if !strings.Contains(out, "= 12,345.5") {
		t.Fatalf("expected formatted result, got %s", out)
	}
	if !strings.Contains(out, `data-index="0"`) {
		t.Fatalf("expected row index, got %s", out)
	}
}

func TestRenderHTMLEmpty(t *testing.T) {
	var b strings.Builder
	if err := RenderHTML(&b, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(b.String(), "History is empty") {
		t.Fatalf("expected empty placeholder, got %s", b.String())
	}
}
