package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// snapshotBlob is one persisted collection: a key ("orders" / "products")
// and the serialized array of full entities.
type snapshotBlob struct {
	Key       string `gorm:"primaryKey"`
	Body      []byte
	UpdatedAt time.Time
}

func (snapshotBlob) TableName() string { return "snapshots" }

// LocalBackend persists the ledger to a sqlite file as two whole-collection
// blobs, rewritten after every mutation. Losing the most recent write on a
// crash is acceptable; the file is a convenience, not a journal.
type LocalBackend struct {
	db *gorm.DB
}

func NewLocalBackend(dbPath string) (*LocalBackend, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot db: %w", err)
	}
	if err := db.AutoMigrate(&snapshotBlob{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot db: %w", err)
	}
	return &LocalBackend{db: db}, nil
}

func (b *LocalBackend) Mode() string { return "local" }

func (b *LocalBackend) Load(ctx context.Context) (LedgerState, error) {
	var state LedgerState

	var blobs []snapshotBlob
	if err := b.db.WithContext(ctx).Find(&blobs).Error; err != nil {
		return state, fmt.Errorf("failed to read snapshots: %w", err)
	}

	for _, blob := range blobs {
		switch Entity(blob.Key) {
		case EntityOrders:
			if err := json.Unmarshal(blob.Body, &state.Orders); err != nil {
				return state, fmt.Errorf("corrupt orders snapshot: %w", err)
			}
		case EntityProducts:
			if err := json.Unmarshal(blob.Body, &state.Products); err != nil {
				return state, fmt.Errorf("corrupt products snapshot: %w", err)
			}
		}
	}
	return state, nil
}

// Apply rewrites the blob of whichever collection the mutation touched.
func (b *LocalBackend) Apply(ctx context.Context, mut Mutation, state LedgerState) error {
	switch mut.Entity {
	case EntityOrders:
		return b.saveBlob(ctx, EntityOrders, state.Orders)
	case EntityProducts:
		return b.saveBlob(ctx, EntityProducts, state.Products)
	}
	return fmt.Errorf("unknown entity %q", mut.Entity)
}

func (b *LocalBackend) saveBlob(ctx context.Context, entity Entity, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", entity, err)
	}
	blob := snapshotBlob{Key: string(entity), Body: body, UpdatedAt: time.Now()}
	err = b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&blob).Error
	if err != nil {
		return fmt.Errorf("failed to write %s snapshot: %w", entity, err)
	}
	return nil
}
