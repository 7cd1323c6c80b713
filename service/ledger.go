package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ricky22407-lang/Buyer-1/model"
)

// LedgerStore is the single source of truth for orders, products and
// interactions. All reads and writes go through its methods; nothing else
// touches the collections. Mutations are applied in memory first and then
// written through to the backend without rollback, so the operator always
// sees their action land even when storage is flaky.
type LedgerStore struct {
	orders       map[string]*model.Order
	products     map[string]*model.Product
	interactions []*model.Interaction
	mu           sync.RWMutex
	backend      Backend // nil disables persistence (tests)
	writes       chan pendingWrite
}

// pendingWrite is one queued write-through: the mutation plus the snapshot
// taken while the store lock was still held.
type pendingWrite struct {
	mut   Mutation
	state LedgerState
}

func NewLedgerStore(backend Backend) *LedgerStore {
	s := &LedgerStore{
		orders:   make(map[string]*model.Order),
		products: make(map[string]*model.Product),
		backend:  backend,
	}
	if backend != nil {
		s.writes = make(chan pendingWrite, 256)
		go s.writeLoop()
	}
	return s
}

// LoadInitial replaces the in-memory collections with the backend's
// persisted state. Called once at startup, before any mutation.
func (s *LedgerStore) LoadInitial(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	state, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = make(map[string]*model.Order, len(state.Orders))
	for _, o := range state.Orders {
		s.orders[o.ID] = o
	}
	s.products = make(map[string]*model.Product, len(state.Products))
	for _, p := range state.Products {
		s.products[p.ID] = p
	}
	slog.Info("ledger loaded",
		"mode", s.backend.Mode(),
		"orders", len(s.orders),
		"products", len(s.products),
	)
	return nil
}

// --- reads ---

// Orders returns all orders sorted by capture time, oldest first.
func (s *LedgerStore) Orders() []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		result = append(result, o)
	}
	sortOrders(result)
	return result
}

// OrdersByGroup returns the orders captured from one chat group.
func (s *LedgerStore) OrdersByGroup(group string) []*model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Order
	for _, o := range s.orders {
		if o.GroupName == group {
			result = append(result, o)
		}
	}
	sortOrders(result)
	return result
}

func (s *LedgerStore) GetOrder(id string) *model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders[id]
}

// Products returns all products sorted by capture time, oldest first.
func (s *LedgerStore) Products() []*model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *LedgerStore) GetProduct(id string) *model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id]
}

// ProductContext serializes the active catalog into the free-text context
// string the extractor receives with every submission.
func (s *LedgerStore) ProductContext() string {
	products := s.Products()
	if len(products) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range products {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(p.Name)
		if p.Price > 0 {
			b.WriteString(" $")
			b.WriteString(strconv.Itoa(p.Price))
		}
		if len(p.Specs) > 0 {
			b.WriteString(" [")
			b.WriteString(strings.Join(p.Specs, "/"))
			b.WriteString("]")
		}
	}
	return b.String()
}

func (s *LedgerStore) Interactions() []*model.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.Interaction, len(s.interactions))
	copy(result, s.interactions)
	return result
}

// --- local mutations (optimistic, write-through) ---

// UpsertOrder inserts or replaces an order by identifier.
func (s *LedgerStore) UpsertOrder(ctx context.Context, o *model.Order) {
	s.mu.Lock()
	s.orders[o.ID] = o
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityOrders, Op: OpUpsert, ID: o.ID, Order: o}, state)
}

// DeleteOrder removes an order. Returns false when the id is unknown.
func (s *LedgerStore) DeleteOrder(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.orders[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.orders, id)
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityOrders, Op: OpDelete, ID: id}, state)
	return true
}

// UpdateOrderStatus advances an order through its lifecycle. Returns the
// updated order, or nil when the id is unknown.
func (s *LedgerStore) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) *model.Order {
	s.mu.Lock()
	existing, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	// Replace rather than mutate in place, so snapshots stay consistent.
	updated := *existing
	updated.Status = status
	s.orders[id] = &updated
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityOrders, Op: OpUpsert, ID: id, Order: &updated}, state)
	return &updated
}

// OrderCorrection carries the operator-editable order fields. Nil fields are
// left alone.
type OrderCorrection struct {
	Quantity *int
	Price    *int
}

// CorrectOrder applies a quantity/price correction.
func (s *LedgerStore) CorrectOrder(ctx context.Context, id string, corr OrderCorrection) *model.Order {
	s.mu.Lock()
	existing, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	updated := *existing
	if corr.Quantity != nil {
		updated.Quantity = *corr.Quantity
	}
	if corr.Price != nil {
		updated.Price = *corr.Price
	}
	s.orders[id] = &updated
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityOrders, Op: OpUpsert, ID: id, Order: &updated}, state)
	return &updated
}

// UpsertProduct inserts or replaces a product by identifier.
func (s *LedgerStore) UpsertProduct(ctx context.Context, p *model.Product) {
	s.mu.Lock()
	s.products[p.ID] = p
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityProducts, Op: OpUpsert, ID: p.ID, Product: p}, state)
}

// DeleteProduct removes a product. Returns false when the id is unknown.
func (s *LedgerStore) DeleteProduct(ctx context.Context, id string) bool {
	s.mu.Lock()
	if _, ok := s.products[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.products, id)
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityProducts, Op: OpDelete, ID: id}, state)
	return true
}

// ProductUpdate carries the operator-editable product fields. Nil fields are
// left alone. PurchasedQty and PurchaseNotes only ever change through here,
// never through reconciliation.
type ProductUpdate struct {
	Price         *int
	Type          *model.PromotionType
	Specs         []string
	ClosingTime   *string
	Description   *string
	PurchasedQty  *int
	PurchaseNotes *string
}

// UpdateProduct applies an operator edit. Returns the updated product, or
// nil when the id is unknown.
func (s *LedgerStore) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) *model.Product {
	s.mu.Lock()
	existing, ok := s.products[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	updated := *existing
	if upd.Price != nil {
		updated.Price = *upd.Price
	}
	if upd.Type != nil {
		updated.Type = *upd.Type
	}
	if upd.Specs != nil {
		updated.Specs = upd.Specs
	}
	if upd.ClosingTime != nil {
		updated.ClosingTime = *upd.ClosingTime
	}
	if upd.Description != nil {
		updated.Description = *upd.Description
	}
	if upd.PurchasedQty != nil {
		updated.PurchasedQty = *upd.PurchasedQty
	}
	if upd.PurchaseNotes != nil {
		updated.PurchaseNotes = *upd.PurchaseNotes
	}
	s.products[id] = &updated
	state := s.snapshotLocked()
	s.mu.Unlock()

	s.writeThrough(Mutation{Entity: EntityProducts, Op: OpUpsert, ID: id, Product: &updated}, state)
	return &updated
}

// AddInteraction appends a question/answer suggestion. Interactions stay in
// memory only and newest-first, matching how operators read them.
func (s *LedgerStore) AddInteraction(i *model.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append([]*model.Interaction{i}, s.interactions...)
}

// ClearInteractions discards all pending suggestions.
func (s *LedgerStore) ClearInteractions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = nil
}

// --- remote merge ---

// ApplyRemoteEvent merges one inbound feed event into memory. The merge is
// replace-by-id / remove-by-id, so an event that echoes this client's own
// optimistic write lands as a harmless overwrite. It never writes back to
// the backend; doing so would bounce events between clients forever.
func (s *LedgerStore) ApplyRemoteEvent(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Entity {
	case EntityOrders:
		switch ev.Op {
		case OpUpsert:
			var o model.Order
			if err := json.Unmarshal(ev.Body, &o); err != nil {
				slog.Warn("discarding malformed order event", "id", ev.ID, "error", err)
				return
			}
			s.orders[o.ID] = &o
		case OpDelete:
			delete(s.orders, ev.ID)
		}
	case EntityProducts:
		switch ev.Op {
		case OpUpsert:
			var p model.Product
			if err := json.Unmarshal(ev.Body, &p); err != nil {
				slog.Warn("discarding malformed product event", "id", ev.ID, "error", err)
				return
			}
			s.products[p.ID] = &p
		case OpDelete:
			delete(s.products, ev.ID)
		}
	default:
		slog.Warn("discarding event for unknown entity", "entity", ev.Entity, "id", ev.ID)
	}
}

// --- internals ---

// snapshotLocked copies the collections for the write-through goroutine.
// Entities are replaced, never mutated in place, so sharing pointers is safe.
func (s *LedgerStore) snapshotLocked() LedgerState {
	state := LedgerState{
		Orders:   make([]*model.Order, 0, len(s.orders)),
		Products: make([]*model.Product, 0, len(s.products)),
	}
	for _, o := range s.orders {
		state.Orders = append(state.Orders, o)
	}
	for _, p := range s.products {
		state.Products = append(state.Products, p)
	}
	sortOrders(state.Orders)
	return state
}

// writeThrough queues a mutation for the backend without blocking the caller.
// Failures are logged and otherwise ignored: the optimistic in-memory state
// stands, and the divergence heals on the next successful write or restart.
// Callers hold the store lock, so queue order matches mutation order.
func (s *LedgerStore) writeThrough(mut Mutation, state LedgerState) {
	if s.backend == nil {
		return
	}
	select {
	case s.writes <- pendingWrite{mut: mut, state: state}:
	default:
		slog.Warn("ledger write queue full, dropping write",
			"mode", s.backend.Mode(),
			"entity", mut.Entity,
			"op", mut.Op,
			"id", mut.ID,
		)
	}
}

// writeLoop drains queued writes one at a time. Each write carries a whole
// snapshot, so a single serialized writer keeps the backend from persisting
// an older snapshot over a newer one.
func (s *LedgerStore) writeLoop() {
	for w := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.backend.Apply(ctx, w.mut, w.state)
		cancel()
		if err != nil {
			slog.Warn("ledger write-through failed",
				"mode", s.backend.Mode(),
				"entity", w.mut.Entity,
				"op", w.mut.Op,
				"id", w.mut.ID,
				"error", err,
			)
		}
	}
}

func sortOrders(orders []*model.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
