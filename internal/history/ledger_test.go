package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecordDedupAndPromote(t *testing.T) {
	l := NewLedger(0)
	l.Record("GET x")
	l.Record("GET y")
	l.Record("GET x")

	if diff := cmp.Diff([]string{"GET x", "GET y"}, l.List()); diff != "" {
		t.Fatalf("unexpected ledger (-want +got):\n%s", diff)
	}

	l.SetMaxSize(1)
	if diff := cmp.Diff([]string{"GET x"}, l.List()); diff != "" {
		t.Fatalf("unexpected ledger after truncation (-want +got):\n%s", diff)
	}
}

func TestRecordIgnoresBlank(t *testing.T) {
	l := NewLedger(10)
	for _, in := range []string{"", "   ", "\t\n"} {
		l.Record(in)
	}
	if l.Len() != 0 {
		t.Fatalf("blank input recorded: %v", l.List())
	}
}

func TestRecordTrims(t *testing.T) {
	l := NewLedger(10)
	l.Record("  PING  ")
	l.Record("PING")
	if diff := cmp.Diff([]string{"PING"}, l.List()); diff != "" {
		t.Fatalf("trimmed duplicates should collapse (-want +got):\n%s", diff)
	}
}

func TestRecordCapsSize(t *testing.T) {
	l := NewLedger(3)
	for i := 0; i < 5; i++ {
		l.Record(fmt.Sprintf("GET k%d", i))
	}
	want := []string{"GET k4", "GET k3", "GET k2"}
	if diff := cmp.Diff(want, l.List()); diff != "" {
		t.Fatalf("oldest entries should be dropped (-want +got):\n%s", diff)
	}
}

func TestDefaultMaxSize(t *testing.T) {
	l := NewLedger(-5)
	if l.MaxSize() != DefaultMaxSize {
		t.Fatalf("MaxSize() = %d, want %d", l.MaxSize(), DefaultMaxSize)
	}
	for i := 0; i < DefaultMaxSize+20; i++ {
		l.Record(fmt.Sprintf("SET k %d", i))
	}
	if l.Len() != DefaultMaxSize {
		t.Fatalf("Len() = %d, want %d", l.Len(), DefaultMaxSize)
	}
}

func TestSetMaxSizeClamps(t *testing.T) {
	l := NewLedger(5)
	l.Record("a")
	l.Record("b")
	l.SetMaxSize(0)
	if l.MaxSize() != 1 {
		t.Fatalf("MaxSize() = %d, want 1", l.MaxSize())
	}
	if diff := cmp.Diff([]string{"b"}, l.List()); diff != "" {
		t.Fatalf("unexpected ledger (-want +got):\n%s", diff)
	}
	// Growing again must not resurrect dropped entries.
	l.SetMaxSize(10)
	if l.Len() != 1 {
		t.Fatalf("Len() = %d after growing, want 1", l.Len())
	}
}

func TestListIsCopy(t *testing.T) {
	l := NewLedger(5)
	l.Record("a")
	got := l.List()
	got[0] = "mutated"
	if l.List()[0] != "a" {
		t.Fatalf("List() exposed internal state")
	}
}

func TestClearKeepsLimit(t *testing.T) {
	l := NewLedger(7)
	l.Record("a")
	l.Clear()
	if l.Len() != 0 || l.MaxSize() != 7 {
		t.Fatalf("Clear() left len=%d max=%d", l.Len(), l.MaxSize())
	}
}

func TestRestore(t *testing.T) {
	l := NewLedger(0)
	l.Restore(Snapshot{Commands: []string{"a", " ", "b", "a", "c"}, MaxSize: 2})
	if diff := cmp.Diff([]string{"a", "b"}, l.List()); diff != "" {
		t.Fatalf("unexpected restored ledger (-want +got):\n%s", diff)
	}
	if l.MaxSize() != 2 {
		t.Fatalf("MaxSize() = %d, want 2", l.MaxSize())
	}

	l.Restore(Snapshot{})
	if l.MaxSize() != DefaultMaxSize || l.Len() != 0 {
		t.Fatalf("empty snapshot should reset to defaults")
	}
}

type memoryStore struct {
	snap    Snapshot
	saves   int
	saveErr error
}

func (m *memoryStore) LoadHistory(context.Context) (Snapshot, error) {
	return m.snap, nil
}

func (m *memoryStore) SaveHistory(_ context.Context, snap Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.snap = snap
	return nil
}

func TestJournalPersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{snap: Snapshot{Commands: []string{"PING"}, MaxSize: 10}}

	j, err := OpenJournal(ctx, store)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if diff := cmp.Diff([]string{"PING"}, j.List()); diff != "" {
		t.Fatalf("loaded ledger mismatch (-want +got):\n%s", diff)
	}

	if err := j.Record(ctx, "GET a"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Record(ctx, "   "); err != nil {
		t.Fatalf("record blank: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d after one real record, want 1", store.saves)
	}
	if diff := cmp.Diff([]string{"GET a", "PING"}, store.snap.Commands); diff != "" {
		t.Fatalf("persisted ledger mismatch (-want +got):\n%s", diff)
	}

	if err := j.SetMaxSize(ctx, 1); err != nil {
		t.Fatalf("set max size: %v", err)
	}
	if store.snap.MaxSize != 1 || len(store.snap.Commands) != 1 {
		t.Fatalf("max size change not persisted: %+v", store.snap)
	}

	if err := j.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.saves != 3 || len(store.snap.Commands) != 0 {
		t.Fatalf("clear not persisted: saves=%d snap=%+v", store.saves, store.snap)
	}
}

func TestJournalSaveError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := &memoryStore{saveErr: boom}
	j, err := OpenJournal(ctx, store)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	if err := j.Record(ctx, "PING"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
	// The in-memory ledger still reflects the command.
	if diff := cmp.Diff([]string{"PING"}, j.List()); diff != "" {
		t.Fatalf("ledger mismatch (-want +got):\n%s", diff)
	}
}
