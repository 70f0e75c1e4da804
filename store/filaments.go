package store

import (
	"context"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/google/uuid"
)

// FilamentRepository persists filament spools.
type FilamentRepository struct {
	s *Store
}

// List returns the owner's filaments ordered by name.
func (r *FilamentRepository) List(ctx context.Context, owner string) ([]models.Filament, error) {
	return listOwned[models.Filament](ctx, r.s.db, owner, "nome ASC, id ASC")
}

// Get returns one filament of the owner.
func (r *FilamentRepository) Get(ctx context.Context, owner, id string) (*models.Filament, error) {
	return getOwned[models.Filament](ctx, r.s.db, owner, id)
}

// Save inserts or updates a filament. A patch naming an existing row is
// merged onto it; otherwise a new row is built with creation defaults and,
// when no id was sent, a generated one.
func (r *FilamentRepository) Save(ctx context.Context, owner string, patch models.FilamentPatch) (*models.Filament, error) {
	existing, err := findExisting[models.Filament](ctx, r.s.db, owner, patch.ID)
	if err != nil {
		return nil, err
	}

	now := r.s.clock()
	var f models.Filament
	if existing != nil {
		f = *existing
		patch.Apply(&f)
		f.ClampWeight()
	} else {
		f = patch.Build()
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.CreatedAt = now
	}
	f.UserID = owner
	f.UpdatedAt = now

	batch := models.NewBatch(owner, now).Add(models.Command{Type: models.UpsertFilament, Filament: &f})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateWeight sets the current weight, clamped into [0, total weight].
func (r *FilamentRepository) UpdateWeight(ctx context.Context, owner, id string, weight float64) (*models.Filament, error) {
	if _, err := r.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.SetFilamentWeight, ID: id, Weight: weight})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return r.Get(ctx, owner, id)
}

// Delete removes one filament. Missing rows are not an error.
func (r *FilamentRepository) Delete(ctx context.Context, owner, id string) error {
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.DeleteFilament, ID: id})
	return r.s.applier.Apply(ctx, batch)
}

// DeleteAll removes every filament of the owner.
func (r *FilamentRepository) DeleteAll(ctx context.Context, owner string) error {
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.DeleteAllFilaments})
	return r.s.applier.Apply(ctx, batch)
}
