package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ricky22407-lang/Buyer-1/model"
)

// fakeBackend records applied mutations and can be told to fail.
type fakeBackend struct {
	mu           sync.Mutex
	applied      []Mutation
	lastState    LedgerState
	failAll      bool
	initial      LedgerState
	loadErr      error
	subscribeErr error
	subscribed   bool
	applyDelay   time.Duration
	notify       chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{notify: make(chan struct{}, 64)}
}

func (b *fakeBackend) Mode() string { return "fake" }

func (b *fakeBackend) Load(ctx context.Context) (LedgerState, error) {
	if b.loadErr != nil {
		return LedgerState{}, b.loadErr
	}
	return b.initial, nil
}

func (b *fakeBackend) Apply(ctx context.Context, mut Mutation, state LedgerState) error {
	if b.applyDelay > 0 {
		time.Sleep(b.applyDelay)
	}
	b.mu.Lock()
	b.applied = append(b.applied, mut)
	b.lastState = state
	fail := b.failAll
	b.mu.Unlock()
	b.notify <- struct{}{}
	if fail {
		return errors.New("backend unavailable")
	}
	return nil
}

func (b *fakeBackend) Subscribe(ctx context.Context, store *LedgerStore) error {
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.mu.Lock()
	b.subscribed = true
	b.mu.Unlock()
	return nil
}

// waitApplied blocks until n mutations have reached the backend.
func (b *fakeBackend) waitApplied(t *testing.T, n int) []Mutation {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		b.mu.Lock()
		got := len(b.applied)
		if got >= n {
			out := make([]Mutation, got)
			copy(out, b.applied)
			b.mu.Unlock()
			return out
		}
		b.mu.Unlock()
		select {
		case <-b.notify:
		case <-deadline:
			t.Fatalf("backend received %d mutations, want %d", got, n)
		}
	}
}

func testOrder(id, buyer string) *model.Order {
	return &model.Order{
		ID:        id,
		BuyerName: buyer,
		ItemName:  "Sakura Cookie",
		Quantity:  2,
		Price:     150,
		Status:    model.StatusPending,
		Source:    model.SourceManual,
		GroupName: "Group A",
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLedgerLoadInitial(t *testing.T) {
	backend := newFakeBackend()
	backend.initial = LedgerState{
		Orders:   []*model.Order{testOrder("o1", "Amy")},
		Products: []*model.Product{{ID: "p1", Name: "Sakura Cookie"}},
	}

	store := NewLedgerStore(backend)
	if err := store.LoadInitial(context.Background()); err != nil {
		t.Fatalf("LoadInitial: %v", err)
	}
	if store.GetOrder("o1") == nil {
		t.Error("persisted order missing after load")
	}
	if store.GetProduct("p1") == nil {
		t.Error("persisted product missing after load")
	}
}

func TestOpenRemoteLedger(t *testing.T) {
	backend := newFakeBackend()
	backend.initial = LedgerState{Orders: []*model.Order{testOrder("o1", "Amy")}}

	store, err := OpenRemoteLedger(context.Background(), backend)
	if err != nil {
		t.Fatalf("OpenRemoteLedger: %v", err)
	}
	if store.GetOrder("o1") == nil {
		t.Error("persisted order missing after open")
	}
	backend.mu.Lock()
	subscribed := backend.subscribed
	backend.mu.Unlock()
	if !subscribed {
		t.Error("change feed not joined")
	}
}

func TestOpenRemoteLedgerLoadFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.loadErr = errors.New("replay failed")

	if _, err := OpenRemoteLedger(context.Background(), backend); err == nil {
		t.Fatal("expected error when replay fails")
	}
}

func TestOpenRemoteLedgerSubscribeFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.subscribeErr = errors.New("feed down")

	if _, err := OpenRemoteLedger(context.Background(), backend); err == nil {
		t.Fatal("expected error when the change feed cannot be joined")
	}
}

func TestLedgerUpsertOrderWritesThrough(t *testing.T) {
	backend := newFakeBackend()
	store := NewLedgerStore(backend)

	store.UpsertOrder(context.Background(), testOrder("o1", "Amy"))

	muts := backend.waitApplied(t, 1)
	if muts[0].Entity != EntityOrders || muts[0].Op != OpUpsert || muts[0].ID != "o1" {
		t.Errorf("mutation = %+v, want orders upsert o1", muts[0])
	}
	if muts[0].Order == nil || muts[0].Order.BuyerName != "Amy" {
		t.Errorf("mutation missing the order body")
	}
}

func TestLedgerBackendFailureKeepsMemoryState(t *testing.T) {
	backend := newFakeBackend()
	backend.failAll = true
	store := NewLedgerStore(backend)

	store.UpsertOrder(context.Background(), testOrder("o1", "Amy"))
	backend.waitApplied(t, 1)

	// The optimistic write stands even though persistence failed.
	if store.GetOrder("o1") == nil {
		t.Error("order rolled back after backend failure")
	}
}

func TestLedgerWritesReachBackendInMutationOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.applyDelay = 2 * time.Millisecond
	store := NewLedgerStore(backend)

	const n = 12
	for i := 0; i < n; i++ {
		store.UpsertOrder(context.Background(), testOrder(fmt.Sprintf("o%02d", i), "Amy"))
	}

	muts := backend.waitApplied(t, n)
	for i, mut := range muts {
		want := fmt.Sprintf("o%02d", i)
		if mut.ID != want {
			t.Fatalf("mutation %d persisted %q, want %q", i, mut.ID, want)
		}
	}

	// Each write carries a whole snapshot, so the last one to land must be
	// the newest. An older snapshot landing last would silently shrink the
	// persisted ledger.
	backend.mu.Lock()
	got := len(backend.lastState.Orders)
	backend.mu.Unlock()
	if got != n {
		t.Fatalf("final persisted snapshot has %d orders, want %d", got, n)
	}
}

func TestLedgerUpdateOrderStatusDoesNotMutateInPlace(t *testing.T) {
	store := NewLedgerStore(nil)
	original := testOrder("o1", "Amy")
	store.UpsertOrder(context.Background(), original)

	updated := store.UpdateOrderStatus(context.Background(), "o1", model.StatusPaid)
	if updated == nil || updated.Status != model.StatusPaid {
		t.Fatalf("updated = %+v, want paid", updated)
	}
	if original.Status != model.StatusPending {
		t.Error("update must replace the entry, not mutate the shared pointer")
	}
	if store.GetOrder("o1").Status != model.StatusPaid {
		t.Error("store did not pick up the new status")
	}
}

func TestLedgerUpdateOrderStatusUnknownID(t *testing.T) {
	store := NewLedgerStore(nil)
	if got := store.UpdateOrderStatus(context.Background(), "missing", model.StatusPaid); got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestLedgerCorrectOrder(t *testing.T) {
	store := NewLedgerStore(nil)
	store.UpsertOrder(context.Background(), testOrder("o1", "Amy"))

	qty := 5
	updated := store.CorrectOrder(context.Background(), "o1", OrderCorrection{Quantity: &qty})
	if updated.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", updated.Quantity)
	}
	if updated.Price != 150 {
		t.Errorf("price = %d, want untouched 150", updated.Price)
	}
}

func TestLedgerDeleteOrder(t *testing.T) {
	store := NewLedgerStore(nil)
	store.UpsertOrder(context.Background(), testOrder("o1", "Amy"))

	if !store.DeleteOrder(context.Background(), "o1") {
		t.Fatal("delete of existing order returned false")
	}
	if store.DeleteOrder(context.Background(), "o1") {
		t.Error("second delete must report the id as unknown")
	}
	if got := len(store.Orders()); got != 0 {
		t.Errorf("store has %d orders, want 0", got)
	}
}

func TestLedgerOrdersSortedByCaptureTime(t *testing.T) {
	store := NewLedgerStore(nil)
	older := testOrder("o2", "Ben")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	store.UpsertOrder(context.Background(), testOrder("o1", "Amy"))
	store.UpsertOrder(context.Background(), older)

	orders := store.Orders()
	if orders[0].ID != "o2" || orders[1].ID != "o1" {
		t.Errorf("order sequence = [%s %s], want oldest first", orders[0].ID, orders[1].ID)
	}
}

func TestLedgerApplyRemoteEventUpsert(t *testing.T) {
	store := NewLedgerStore(nil)

	body, _ := json.Marshal(testOrder("o1", "Amy"))
	ev := ChangeEvent{Entity: EntityOrders, Op: OpUpsert, ID: "o1", Body: body}

	store.ApplyRemoteEvent(ev)
	if store.GetOrder("o1") == nil {
		t.Fatal("remote upsert did not land")
	}

	// Applying the same event again is a harmless overwrite, which is what
	// makes the feed safe without echo suppression.
	store.ApplyRemoteEvent(ev)
	if got := len(store.Orders()); got != 1 {
		t.Errorf("store has %d orders after duplicate event, want 1", got)
	}
}

func TestLedgerApplyRemoteEventDelete(t *testing.T) {
	store := NewLedgerStore(nil)
	store.UpsertOrder(context.Background(), testOrder("o1", "Amy"))

	ev := ChangeEvent{Entity: EntityOrders, Op: OpDelete, ID: "o1"}
	store.ApplyRemoteEvent(ev)
	if store.GetOrder("o1") != nil {
		t.Fatal("remote delete did not land")
	}

	// Deleting an already-deleted id is a no-op.
	store.ApplyRemoteEvent(ev)
}

func TestLedgerApplyRemoteEventMalformedBody(t *testing.T) {
	store := NewLedgerStore(nil)
	store.ApplyRemoteEvent(ChangeEvent{
		Entity: EntityOrders, Op: OpUpsert, ID: "o1", Body: json.RawMessage("not json"),
	})
	if got := len(store.Orders()); got != 0 {
		t.Errorf("malformed event must be discarded, store has %d orders", got)
	}
}

func TestLedgerRemoteEventNeverWritesBack(t *testing.T) {
	backend := newFakeBackend()
	store := NewLedgerStore(backend)

	body, _ := json.Marshal(testOrder("o1", "Amy"))
	store.ApplyRemoteEvent(ChangeEvent{Entity: EntityOrders, Op: OpUpsert, ID: "o1", Body: body})

	// Give any stray write-through goroutine a moment to surface.
	time.Sleep(50 * time.Millisecond)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.applied) != 0 {
		t.Errorf("remote event reached the backend: %+v", backend.applied)
	}
}

func TestLedgerUpdateProduct(t *testing.T) {
	store := NewLedgerStore(nil)
	store.UpsertProduct(context.Background(), &model.Product{
		ID: "p1", Name: "Sakura Cookie", Price: 150, Specs: []string{"original"},
	})

	price := 180
	notes := "deposit paid"
	updated := store.UpdateProduct(context.Background(), "p1", ProductUpdate{
		Price:         &price,
		PurchaseNotes: &notes,
	})
	if updated.Price != 180 || updated.PurchaseNotes != "deposit paid" {
		t.Errorf("updated = %+v", updated)
	}
	if len(updated.Specs) != 1 {
		t.Errorf("specs = %v, want untouched", updated.Specs)
	}

	if got := store.UpdateProduct(context.Background(), "missing", ProductUpdate{Price: &price}); got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestLedgerProductContext(t *testing.T) {
	store := NewLedgerStore(nil)
	if got := store.ProductContext(); got != "" {
		t.Errorf("empty catalog context = %q, want empty", got)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.UpsertProduct(context.Background(), &model.Product{
		ID: "p1", Name: "Sakura Cookie", Price: 150, Specs: []string{"original", "matcha"}, CreatedAt: base,
	})
	store.UpsertProduct(context.Background(), &model.Product{
		ID: "p2", Name: "Plum Tea", CreatedAt: base.Add(time.Minute),
	})

	want := "Sakura Cookie $150 [original/matcha]; Plum Tea"
	if got := store.ProductContext(); got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
}

func TestLedgerInteractions(t *testing.T) {
	store := NewLedgerStore(nil)
	store.AddInteraction(&model.Interaction{ID: "i1", BuyerName: "Amy"})
	store.AddInteraction(&model.Interaction{ID: "i2", BuyerName: "Ben"})

	got := store.Interactions()
	if len(got) != 2 || got[0].ID != "i2" {
		t.Errorf("interactions = %+v, want newest first", got)
	}

	store.ClearInteractions()
	if got := len(store.Interactions()); got != 0 {
		t.Errorf("store has %d interactions after clear, want 0", got)
	}
}
