package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store groups the per-entity repositories. Reads go straight to the
// database; writes are turned into batches and submitted through the
// applier.
type Store struct {
	db      *gorm.DB
	applier Applier
	now     func() time.Time

	Filaments *FilamentRepository
	Printers  *PrinterRepository
	Projects  *ProjectRepository
	Accounts  *AccountRepository
	Budgets   *BudgetRepository
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp batches.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithArchive keeps a copy of the account export before every purge.
func WithArchive(archive *Archive) Option {
	return func(s *Store) { s.Accounts.archive = archive }
}

// New creates the repositories over db, submitting writes through applier.
func New(db *gorm.DB, applier Applier, opts ...Option) *Store {
	s := &Store{db: db, applier: applier, now: time.Now}
	s.Filaments = &FilamentRepository{s: s}
	s.Printers = &PrinterRepository{s: s}
	s.Projects = &ProjectRepository{s: s}
	s.Accounts = &AccountRepository{s: s}
	s.Budgets = &BudgetRepository{s: s}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// listOwned returns every row of the owner in the given order.
func listOwned[T any](ctx context.Context, db *gorm.DB, owner, order string) ([]T, error) {
	rows := make([]T, 0)
	if err := db.WithContext(ctx).Where("user_id = ?", owner).Order(order).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// getOwned returns one row of the owner by id.
func getOwned[T any](ctx context.Context, db *gorm.DB, owner, id string) (*T, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidInput)
	}
	var row T
	err := db.WithContext(ctx).Where("user_id = ? AND id = ?", owner, id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// findExisting is getOwned without the not-found error: it returns nil
// when no id was given or the row does not exist yet.
func findExisting[T any](ctx context.Context, db *gorm.DB, owner string, id *string) (*T, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	row, err := getOwned[T](ctx, db, owner, *id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return row, err
}
