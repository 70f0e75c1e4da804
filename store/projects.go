package store

import (
	"context"
	"fmt"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/google/uuid"
)

// ProjectRepository persists budgets/quotes.
type ProjectRepository struct {
	s *Store
}

// List returns the owner's projects, newest first.
func (r *ProjectRepository) List(ctx context.Context, owner string) ([]models.Project, error) {
	return listOwned[models.Project](ctx, r.s.db, owner, "created_at DESC, id ASC")
}

// Get returns one project of the owner.
func (r *ProjectRepository) Get(ctx context.Context, owner, id string) (*models.Project, error) {
	return getOwned[models.Project](ctx, r.s.db, owner, id)
}

// Save inserts or updates a project. The label defaults from the project
// name entered in the inputs.
func (r *ProjectRepository) Save(ctx context.Context, owner string, patch models.ProjectPatch) (*models.Project, error) {
	existing, err := findExisting[models.Project](ctx, r.s.db, owner, patch.ID)
	if err != nil {
		return nil, err
	}

	now := r.s.clock()
	var p models.Project
	if existing != nil {
		p = *existing
		if err := patch.Apply(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	} else {
		p, err = patch.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.CreatedAt = now
	}
	p.UserID = owner
	p.UpdatedAt = now

	batch := models.NewBatch(owner, now).Add(models.Command{Type: models.UpsertProject, Project: &p, Status: patch.RequestedStatus()})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus moves a project along its lifecycle.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, owner, id, status string) (*models.Project, error) {
	p, err := r.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateProjectStatusChange(p.Status(), status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.SetProjectStatus, ID: id, Status: status})
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return nil, err
	}
	return r.Get(ctx, owner, id)
}

// Delete removes one project. Missing rows are not an error.
func (r *ProjectRepository) Delete(ctx context.Context, owner, id string) error {
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.DeleteProject, ID: id})
	return r.s.applier.Apply(ctx, batch)
}

// DeleteAll removes every project of the owner.
func (r *ProjectRepository) DeleteAll(ctx context.Context, owner string) error {
	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{Type: models.DeleteAllProjects})
	return r.s.applier.Apply(ctx, batch)
}
