package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	rd "github.com/redis/go-redis/v9"
	"github.com/ricky22407-lang/Buyer-1/config"
	"github.com/ricky22407-lang/Buyer-1/model"
)

// RemoteBackend delegates authoritative writes to a shared redis instance
// and fans changes out to every subscribed client over Pub/Sub. Each
// collection is a hash keyed by entity id with the full JSON body as value,
// so upsert and delete are both single idempotent commands.
type RemoteBackend struct {
	rdb    *rd.Client
	prefix string
	pubsub *rd.PubSub
}

// NewRemoteBackend connects and pings the shared redis. A failure here means
// the session falls back to local mode; the caller decides that.
func NewRemoteBackend(ctx context.Context, cfg *config.RemoteConfig) (*RemoteBackend, error) {
	rdb := rd.NewClient(&rd.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach remote ledger: %w", err)
	}
	return &RemoteBackend{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (b *RemoteBackend) Mode() string { return "remote" }

func (b *RemoteBackend) collectionKey(entity Entity) string {
	return fmt.Sprintf("%s:%s", b.prefix, entity)
}

func (b *RemoteBackend) eventsChannel() string {
	return fmt.Sprintf("%s:events", b.prefix)
}

func (b *RemoteBackend) Load(ctx context.Context) (LedgerState, error) {
	var state LedgerState

	rows, err := b.rdb.HGetAll(ctx, b.collectionKey(EntityOrders)).Result()
	if err != nil {
		return state, fmt.Errorf("failed to fetch orders: %w", err)
	}
	for id, body := range rows {
		var o model.Order
		if err := json.Unmarshal([]byte(body), &o); err != nil {
			slog.Warn("skipping corrupt remote order", "id", id, "error", err)
			continue
		}
		state.Orders = append(state.Orders, &o)
	}

	rows, err = b.rdb.HGetAll(ctx, b.collectionKey(EntityProducts)).Result()
	if err != nil {
		return state, fmt.Errorf("failed to fetch products: %w", err)
	}
	for id, body := range rows {
		var p model.Product
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			slog.Warn("skipping corrupt remote product", "id", id, "error", err)
			continue
		}
		state.Products = append(state.Products, &p)
	}

	return state, nil
}

// Apply writes one mutation through to redis and publishes the matching
// change event. Write and publish share a pipeline so other clients never
// hear about a write that did not land.
func (b *RemoteBackend) Apply(ctx context.Context, mut Mutation, _ LedgerState) error {
	ev := ChangeEvent{Entity: mut.Entity, Op: mut.Op, ID: mut.ID}

	var body []byte
	var err error
	if mut.Op == OpUpsert {
		switch {
		case mut.Order != nil:
			body, err = json.Marshal(mut.Order)
		case mut.Product != nil:
			body, err = json.Marshal(mut.Product)
		default:
			return fmt.Errorf("upsert mutation without entity body, id=%s", mut.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal entity: %w", err)
		}
		ev.Body = body
	}

	evJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	key := b.collectionKey(mut.Entity)
	pipe := b.rdb.TxPipeline()
	switch mut.Op {
	case OpUpsert:
		pipe.HSet(ctx, key, mut.ID, body)
	case OpDelete:
		pipe.HDel(ctx, key, mut.ID)
	default:
		return fmt.Errorf("unknown op %q", mut.Op)
	}
	pipe.Publish(ctx, b.eventsChannel(), evJSON)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remote write failed: %w", err)
	}
	return nil
}

// Subscribe starts consuming the change feed and merging every event into
// the store. It returns after the subscription is established; the merge
// loop runs until ctx is cancelled or Close is called. Own-write echoes are
// not filtered out on purpose: the merge is idempotent either way.
func (b *RemoteBackend) Subscribe(ctx context.Context, store *LedgerStore) error {
	pubsub := b.rdb.Subscribe(ctx, b.eventsChannel())
	// Force the subscription onto the wire before declaring remote mode up.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}
	b.pubsub = pubsub

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					slog.Info("change feed closed")
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("discarding malformed change event", "error", err)
					continue
				}
				store.ApplyRemoteEvent(ev)
			}
		}
	}()
	return nil
}

// Close tears down the subscription and the client.
func (b *RemoteBackend) Close() error {
	if b.pubsub != nil {
		b.pubsub.Close()
	}
	return b.rdb.Close()
}
