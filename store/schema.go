package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/devadigapratham/printlog/api/models"
	"gorm.io/gorm"
)

// AppliedIndex records the last replicated log index applied to this
// database so replays after a restart are skipped.
type AppliedIndex struct {
	ID    uint   `gorm:"primaryKey"`
	Index uint64 `gorm:"column:log_index;not null;default:0"`
}

// TableName pins the table name used by the schema initializer.
func (AppliedIndex) TableName() string { return "applied_index" }

// Schema guarantees that every table exists before queries run.
type Schema struct {
	db *gorm.DB

	mu    sync.Mutex
	ready bool
}

// NewSchema creates a schema initializer for db.
func NewSchema(db *gorm.DB) *Schema {
	return &Schema{db: db}
}

// Ensure creates missing tables. It is safe to call on every request: after
// the first success it returns immediately, and a failure is retried by the
// next call.
func (s *Schema) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.Filament{},
		&models.Printer{},
		&models.Project{},
		&AppliedIndex{},
	)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	s.ready = true
	return nil
}
