package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gopherai-workspace/internal/model"
)

// StateRepository persists session-state blobs in the state_entries table.
type StateRepository struct {
	db     *gorm.DB
	prefix string
}

func NewStateRepository(db *gorm.DB, prefix string) *StateRepository {
	return &StateRepository{db: db, prefix: prefix}
}

func (r *StateRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry model.StateEntry
	err := r.db.WithContext(ctx).Where("`key` = ?", r.prefix+key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get state entry failed: %w", err)
	}
	return entry.Value, true, nil
}

func (r *StateRepository) Set(ctx context.Context, key string, value []byte) error {
	return r.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany upserts every entry in one transaction.
func (r *StateRepository) SetMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]model.StateEntry, 0, len(entries))
	for key, value := range entries {
		rows = append(rows, model.StateEntry{Key: r.prefix + key, Value: value, UpdatedAt: now})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("upsert state entries failed: %w", err)
	}
	return nil
}
