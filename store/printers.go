package store

import (
	"context"
	"fmt"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/google/uuid"
)

// PrinterRepository persists printers.
type PrinterRepository struct {
	s *Store
}

// List returns the owner's printers ordered by name.
func (r *PrinterRepository) List(ctx context.Context, owner string) ([]models.Printer, error) {
	return listOwned[models.Printer](ctx, r.s.db, owner, "nome ASC, id ASC")
}

// Get returns one printer of the owner.
func (r *PrinterRepository) Get(ctx context.Context, owner, id string) (*models.Printer, error) {
	return getOwned[models.Printer](ctx, r.s.db, owner, id)
}

// Save inserts or updates a printer, merging partial payloads onto an
// existing row.
func (r *PrinterRepository) Save(ctx context.Context, owner string, patch models.PrinterPatch) (*models.Printer, error) {
	existing, err := findExisting[models.Printer](ctx, r.s.db, owner, patch.ID)
	if err != nil {
		return nil, err
	}

	now := r.s.clock()
	var p models.Printer
	if existing != nil {
		p = *existing
		patch.Apply(&p)
	} else {
		p = patch.Build()
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.CreatedAt = now
	}
	p.UserID = owner
	p.UpdatedAt = now

	batch := models.NewBatch(owner, now).Add(models.Command{Type: models.UpsertPrinter, Printer: &p})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus sets the printer status.
func (r *PrinterRepository) UpdateStatus(ctx context.Context, owner, id, status string) (*models.Printer, error) {
	if !models.IsValidPrinterStatus(status) {
		return nil, fmt.Errorf("%w: printer status %q", ErrInvalidInput, status)
	}
	if _, err := r.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.SetPrinterStatus, ID: id, Status: status})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return r.Get(ctx, owner, id)
}

// ResetMaintenance marks the printer as maintained at its current hour count.
func (r *PrinterRepository) ResetMaintenance(ctx context.Context, owner, id string) (*models.Printer, error) {
	if _, err := r.Get(ctx, owner, id); err != nil {
		return nil, err
	}
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.ResetPrinterMaintenance, ID: id})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return r.Get(ctx, owner, id)
}

// Delete removes one printer. Missing rows are not an error.
func (r *PrinterRepository) Delete(ctx context.Context, owner, id string) error {
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.DeletePrinter, ID: id})
	return r.s.applier.Apply(ctx, batch)
}

// DeleteAll removes every printer of the owner.
func (r *PrinterRepository) DeleteAll(ctx context.Context, owner string) error {
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.DeleteAllPrinters})
	return r.s.applier.Apply(ctx, batch)
}
