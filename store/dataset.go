package store

import (
	"errors"
	"fmt"

	"github.com/devadigapratham/printlog/api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dataset is the full content of the entity tables, used for replication
// snapshots.
type Dataset struct {
	AppliedIndex uint64            `json:"applied_index"`
	Filaments    []models.Filament `json:"filaments"`
	Printers     []models.Printer  `json:"printers"`
	Projects     []models.Project  `json:"projects"`
}

// ExportAll reads every entity row of every owner.
func ExportAll(db *gorm.DB) (*Dataset, error) {
	ds := &Dataset{}
	var err error
	if ds.AppliedIndex, err = LastApplied(db); err != nil {
		return nil, err
	}
	if err := db.Order("user_id, id").Find(&ds.Filaments).Error; err != nil {
		return nil, fmt.Errorf("export filaments: %w", err)
	}
	if err := db.Order("user_id, id").Find(&ds.Printers).Error; err != nil {
		return nil, fmt.Errorf("export printers: %w", err)
	}
	if err := db.Order("user_id, id").Find(&ds.Projects).Error; err != nil {
		return nil, fmt.Errorf("export projects: %w", err)
	}
	return ds, nil
}

// ImportAll replaces the content of the entity tables with ds in one
// transaction.
func ImportAll(db *gorm.DB, ds *Dataset) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Filament{}, &models.Printer{}, &models.Project{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear table: %w", err)
			}
		}
		if len(ds.Filaments) > 0 {
			if err := tx.CreateInBatches(ds.Filaments, 200).Error; err != nil {
				return fmt.Errorf("import filaments: %w", err)
			}
		}
		if len(ds.Printers) > 0 {
			if err := tx.CreateInBatches(ds.Printers, 200).Error; err != nil {
				return fmt.Errorf("import printers: %w", err)
			}
		}
		if len(ds.Projects) > 0 {
			if err := tx.CreateInBatches(ds.Projects, 200).Error; err != nil {
				return fmt.Errorf("import projects: %w", err)
			}
		}
		return SetApplied(tx, ds.AppliedIndex)
	})
}

// LastApplied returns the last replicated log index applied to db.
func LastApplied(db *gorm.DB) (uint64, error) {
	var row AppliedIndex
	err := db.Where("id = ?", 1).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read applied index: %w", err)
	}
	return row.Index, nil
}

// SetApplied records index as the last applied log index.
func SetApplied(tx *gorm.DB, index uint64) error {
	row := AppliedIndex{ID: 1, Index: index}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"log_index"}),
	}).Create(&row).Error
}
