package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/devadigapratham/printlog/api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Applier submits a batch of mutations. Implementations must apply all
// commands of the batch or none of them.
type Applier interface {
	Apply(ctx context.Context, batch *models.Batch) error
}

// ownerKey is the conflict target of every upsert: rows are unique per
// (owner, id), so an id supplied by another owner never hits their row.
var ownerKey = []clause.Column{{Name: "user_id"}, {Name: "id"}}

var (
	filamentColumns = []string{"nome", "marca", "material", "cor_hex", "peso_total", "peso_atual", "preco", "data_abertura", "favorito", "updated_at"}
	printerColumns  = []string{"nome", "marca", "modelo", "status", "potencia", "preco", "rendimento_total", "horas_totais", "ultima_manutencao_hora", "intervalo_manutencao", "historico", "updated_at"}
	projectColumns  = []string{"label", "data", "updated_at"}
)

// Exec applies every command of batch using tx. The caller owns the
// transaction; any returned error must roll it back.
func Exec(tx *gorm.DB, batch *models.Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for i := range batch.Commands {
		cmd := &batch.Commands[i]
		if err := execCommand(tx, batch, cmd); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Type, err)
		}
	}
	return nil
}

func execCommand(tx *gorm.DB, batch *models.Batch, cmd *models.Command) error {
	owner := batch.OwnerID
	now := batch.IssuedAt

	switch cmd.Type {
	case models.UpsertFilament:
		f := *cmd.Filament
		f.UserID = owner
		f.ClampWeight()
		return upsert(tx, &f, filamentColumns)

	case models.SetFilamentWeight:
		var f models.Filament
		if err := findOwned(tx, owner, cmd.ID, &f); err != nil {
			return err
		}
		return updateOwned(tx, &models.Filament{}, owner, cmd.ID, map[string]any{
			"peso_atual": models.ClampWeight(cmd.Weight, f.TotalWeight),
			"updated_at": now,
		})

	case models.ConsumeFilament:
		var f models.Filament
		if err := findOwned(tx, owner, cmd.ID, &f); err != nil {
			// untracked spools are skipped, like an UPDATE matching no row
			return ignoreNotFound(err)
		}
		return updateOwned(tx, &models.Filament{}, owner, cmd.ID, map[string]any{
			"peso_atual": models.Consume(f.CurrentWeight, cmd.Weight),
			"updated_at": now,
		})

	case models.DeleteFilament:
		return deleteOwned(tx, &models.Filament{}, owner, cmd.ID)

	case models.DeleteAllFilaments:
		return deleteOwned(tx, &models.Filament{}, owner, "")

	case models.UpsertPrinter:
		p := *cmd.Printer
		p.UserID = owner
		return upsert(tx, &p, printerColumns)

	case models.SetPrinterStatus:
		if !models.IsValidPrinterStatus(cmd.Status) {
			return fmt.Errorf("%w: printer status %q", ErrInvalidInput, cmd.Status)
		}
		return updateOwned(tx, &models.Printer{}, owner, cmd.ID, map[string]any{
			"status":     cmd.Status,
			"updated_at": now,
		})

	case models.AddPrinterHours:
		var p models.Printer
		if err := findOwned(tx, owner, cmd.ID, &p); err != nil {
			return ignoreNotFound(err)
		}
		updates := map[string]any{
			"horas_totais": p.TotalHours + cmd.Hours,
			"updated_at":   now,
		}
		if cmd.Status != "" {
			updates["status"] = cmd.Status
		}
		return updateOwned(tx, &models.Printer{}, owner, cmd.ID, updates)

	case models.ResetPrinterMaintenance:
		var p models.Printer
		if err := findOwned(tx, owner, cmd.ID, &p); err != nil {
			return err
		}
		return updateOwned(tx, &models.Printer{}, owner, cmd.ID, map[string]any{
			"ultima_manutencao_hora": p.TotalHours,
			"status":                 models.PrinterIdle,
			"updated_at":             now,
		})

	case models.DeletePrinter:
		return deleteOwned(tx, &models.Printer{}, owner, cmd.ID)

	case models.DeleteAllPrinters:
		return deleteOwned(tx, &models.Printer{}, owner, "")

	case models.UpsertProject:
		p := *cmd.Project
		p.UserID = owner
		var stored models.Project
		err := findOwned(tx, owner, p.ID, &stored)
		switch {
		case err == nil:
			status := cmd.Status
			if status == "" {
				status = stored.Status()
			} else if err := models.ValidateProjectStatusChange(stored.Status(), status); err != nil {
				return fmt.Errorf("%w: %v", ErrConflict, err)
			}
			if err := p.SetStatus(status); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return upsert(tx, &p, projectColumns)

	case models.SetProjectStatus:
		var p models.Project
		if err := findOwned(tx, owner, cmd.ID, &p); err != nil {
			return err
		}
		if err := models.ValidateProjectStatusChange(p.Status(), cmd.Status); err != nil {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if err := p.SetStatus(cmd.Status); err != nil {
			return err
		}
		return updateOwned(tx, &models.Project{}, owner, cmd.ID, map[string]any{
			"data":       p.Data,
			"updated_at": now,
		})

	case models.ApproveProject:
		var p models.Project
		if err := findOwned(tx, owner, cmd.ID, &p); err != nil {
			return err
		}
		// read inside the transaction: a draft is approved, and stock booked, once
		if p.Status() != models.ProjectDraft {
			return fmt.Errorf("%w: project is already %s", ErrConflict, p.Status())
		}
		if err := p.SetStatus(models.ProjectApproved); err != nil {
			return err
		}
		return updateOwned(tx, &models.Project{}, owner, cmd.ID, map[string]any{
			"data":       p.Data,
			"updated_at": now,
		})

	case models.DeleteProject:
		return deleteOwned(tx, &models.Project{}, owner, cmd.ID)

	case models.DeleteAllProjects:
		return deleteOwned(tx, &models.Project{}, owner, "")

	default:
		return fmt.Errorf("%w: unknown command type %s", ErrInvalidInput, cmd.Type)
	}
}

func upsert(tx *gorm.DB, row any, columns []string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   ownerKey,
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
}

func findOwned(tx *gorm.DB, owner, id string, dest any) error {
	err := tx.Where("user_id = ? AND id = ?", owner, id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func updateOwned(tx *gorm.DB, model any, owner, id string, updates map[string]any) error {
	res := tx.Model(model).Where("user_id = ? AND id = ?", owner, id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteOwned removes one row, or every row of the owner when id is empty.
// Deleting a missing row is not an error.
func deleteOwned(tx *gorm.DB, model any, owner, id string) error {
	q := tx.Where("user_id = ?", owner)
	if id != "" {
		q = q.Where("id = ?", id)
	}
	return q.Delete(model).Error
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// LocalApplier applies batches directly to a database inside one
// transaction, without replication.
type LocalApplier struct {
	db *gorm.DB
}

// NewLocalApplier creates an applier writing straight to db.
func NewLocalApplier(db *gorm.DB) *LocalApplier {
	return &LocalApplier{db: db}
}

// Apply runs the batch in a single transaction.
func (a *LocalApplier) Apply(ctx context.Context, batch *models.Batch) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return Exec(tx, batch)
	})
}
