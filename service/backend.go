package service

import (
	"context"
	"encoding/json"

	"github.com/ricky22407-lang/Buyer-1/model"
)

// Entity names the two synced ledger collections.
type Entity string

const (
	EntityOrders   Entity = "orders"
	EntityProducts Entity = "products"
)

// Op is a mutation kind. There are only two: replace-by-id and remove-by-id.
// Both are safe to apply twice, which is what keeps the sync path honest
// without any echo suppression.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// Mutation is one ledger change, already applied locally, on its way to
// durable storage.
type Mutation struct {
	Entity  Entity
	Op      Op
	ID      string
	Order   *model.Order   // set for order upserts
	Product *model.Product // set for product upserts
}

// LedgerState is a point-in-time copy of both collections.
type LedgerState struct {
	Orders   []*model.Order
	Products []*model.Product
}

// Backend is where accepted ledger state goes to survive the process. The
// store applies every mutation optimistically in memory first, then hands it
// here fire-and-forget; a failing backend must never roll the memory back.
type Backend interface {
	// Mode returns a short label for logs ("local" or "remote").
	Mode() string
	// Load fetches the full persisted state, used once at startup.
	Load(ctx context.Context) (LedgerState, error)
	// Apply persists one mutation. state is the post-mutation snapshot for
	// backends that persist whole collections; event-oriented backends use
	// mut and ignore it.
	Apply(ctx context.Context, mut Mutation, state LedgerState) error
}

// FeedBackend is a Backend that also carries a realtime change feed. The
// redis backend is the only production implementation; the seam exists so
// the startup path can be exercised without a broker.
type FeedBackend interface {
	Backend
	Subscribe(ctx context.Context, store *LedgerStore) error
}

// OpenRemoteLedger builds a store on a shared backend: replay the persisted
// state, then join the change feed. Either step failing returns an error so
// the caller can fall back to a local snapshot instead of running a remote
// session that never syncs.
func OpenRemoteLedger(ctx context.Context, b FeedBackend) (*LedgerStore, error) {
	store := NewLedgerStore(b)
	if err := store.LoadInitial(ctx); err != nil {
		return nil, err
	}
	if err := b.Subscribe(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

// ChangeEvent is the wire format of the realtime feed: one mutation, keyed
// by identifier, with the full entity body for upserts.
type ChangeEvent struct {
	Entity Entity          `json:"entity"`
	Op     Op              `json:"op"`
	ID     string          `json:"id"`
	Body   json.RawMessage `json:"body,omitempty"`
}
