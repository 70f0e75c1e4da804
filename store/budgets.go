package store

import (
	"context"
	"fmt"

	"github.com/devadigapratham/printlog/api/models"
)

// BudgetRepository runs the cross-entity budget approval.
type BudgetRepository struct {
	s *Store
}

// Approve moves a project to approved, adds the print time to the chosen
// printer and takes the consumed grams out of each tracked filament. All
// of it is submitted as one batch.
func (r *BudgetRepository) Approve(ctx context.Context, owner string, req models.Approval) error {
	if req.ProjectID == "" {
		return fmt.Errorf("%w: missing project id", ErrInvalidInput)
	}
	project, err := r.s.Projects.Get(ctx, owner, req.ProjectID)
	if err != nil {
		return err
	}
	if project.Status() != models.ProjectDraft {
		return fmt.Errorf("%w: project is already %s", ErrConflict, project.Status())
	}

	batch := models.NewBatch(owner, r.s.clock()).Add(models.Command{
		Type: models.ApproveProject,
		ID:   req.ProjectID,
	})

	if req.PrinterID != "" {
		hours := req.TotalTime
		if hours < 0 {
			hours = 0
		}
		batch.Add(models.Command{
			Type:   models.AddPrinterHours,
			ID:     req.PrinterID,
			Hours:  hours,
			Status: models.PrinterPrinting,
		})
	}

	for _, usage := range req.Filaments {
		if !usage.Tracked() {
			continue
		}
		batch.Add(models.Command{
			Type:   models.ConsumeFilament,
			ID:     usage.ID,
			Weight: usage.Weight,
		})
	}

	return r.s.applier.Apply(ctx, batch)
}
