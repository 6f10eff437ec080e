package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/storage"
	"go-chi-calculator/internal/testutil"
)

func dispatchKeys(t *testing.T, s *Session, keys ...string) {
	t.Helper()
	for _, key := range keys {
		a, ok := calculator.ActionForKey(key)
		if !ok {
			t.Fatalf("key %q not recognized", key)
		}
		if _, _, err := s.Dispatch(a); err != nil {
			t.Fatalf("dispatching %q: %v", key, err)
		}
	}
}

func TestResumeAfterRestartRestoresHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	first := NewRegistry(store)
	s, err := first.Create(ctx)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	dispatchKeys(t, s, "6", "*", "7", "=")

	restarted := NewRegistry(store)
	resumed, err := restarted.Resume(ctx, s.ID)
	if err != nil {
		t.Fatalf("resuming session: %v", err)
	}

	entries := resumed.History()
	if len(entries) != 1 || entries[0].Result != "42" {
		t.Fatalf("expected restored history, got %+v", entries)
	}
	if readout, _, _ := resumed.Snapshot(); readout.Operand != "0" {
		t.Fatalf("expected resumed engine to start at 0, got %q", readout.Operand)
	}
	if restarted.Len() != 1 {
		t.Fatalf("expected resumed session to be live, got %d", restarted.Len())
	}

	again, err := restarted.Resume(ctx, s.ID)
	if err != nil || again != resumed {
		t.Fatalf("expected the live session back, got %p %v", again, err)
	}
}

func TestResumeUnknownSession(t *testing.T) {
	registry := NewRegistry(storage.NewMemory())

	for _, id := range []string{"nope", uuid.New().String()} {
		if _, err := registry.Resume(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %q, got %v", id, err)
		}
	}
}

func TestSweepDropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	registry := NewRegistry(storage.NewMemory(), WithIdleTimeout(time.Minute))
	registry.now = func() time.Time { return now }

	idle, err := registry.Create(ctx)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	dispatchKeys(t, idle, "1", "+", "1", "=")

	now = now.Add(30 * time.Second)
	busy, err := registry.Create(ctx)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}

	now = now.Add(45 * time.Second)
	if _, ok := registry.Get(busy.ID); !ok {
		t.Fatal("expected busy session to be live")
	}

	if n := registry.Sweep(); n != 1 {
		t.Fatalf("expected 1 session dropped, got %d", n)
	}
	if _, ok := registry.Get(idle.ID); ok {
		t.Fatal("expected idle session to be dropped")
	}
	if _, ok := registry.Get(busy.ID); !ok {
		t.Fatal("expected busy session to survive")
	}

	resumed, err := registry.Resume(ctx, idle.ID)
	if err != nil {
		t.Fatalf("resuming dropped session: %v", err)
	}
	if len(resumed.History()) != 1 {
		t.Fatalf("expected dropped session history to survive, got %+v", resumed.History())
	}
}

func TestSweepDisabled(t *testing.T) {
	registry := NewRegistry(storage.NewMemory(), WithIdleTimeout(0))
	registry.now = func() time.Time { return time.Unix(0, 0) }
	if _, err := registry.Create(context.Background()); err != nil {
		t.Fatalf("creating session: %v", err)
	}

	registry.now = time.Now
	if n := registry.Sweep(); n != 0 {
		t.Fatalf("expected nothing dropped, got %d", n)
	}
}

func TestResumeOverHTTPAfterRestart(t *testing.T) {
	store := storage.NewMemory()
	router, _ := newTestRouter(t, store)
	id := createSession(t, router).ID
	pressKeys(t, router, id, "2", "+", "3", "=")

	restarted, _ := newTestRouter(t, store)
	w := testutil.ExecuteRequest(testutil.NewJSONRequest(t, http.MethodGet, "/calculator/sessions/"+id, nil), restarted)
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var resp SessionResponse
	testutil.DecodeJSONBody(t, w.Body, &resp)
	if resp.ID != id || resp.HistorySize != 1 {
		t.Fatalf("expected resumed session with 1 entry, got %+v", resp)
	}
}
