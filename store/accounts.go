package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// AccountRepository implements account-level operations.
type AccountRepository struct {
	s       *Store
	archive *Archive
}

// Backup exports all rows of the owner. A failure in any query fails the
// whole export; a partial backup is never returned.
func (r *AccountRepository) Backup(ctx context.Context, owner string) (*models.Backup, error) {
	filaments, err := r.s.Filaments.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("backup filaments: %w", err)
	}
	printers, err := r.s.Printers.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("backup printers: %w", err)
	}
	projects, err := r.s.Projects.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("backup projects: %w", err)
	}

	return &models.Backup{
		Success: true,
		Metadata: models.BackupMetadata{
			GeneratedAt: r.s.clock(),
			UserID:      owner,
			Version:     models.BackupVersion,
			Counts: map[string]int{
				"filaments": len(filaments),
				"printers":  len(printers),
				"projects":  len(projects),
			},
		},
		Data: models.BackupData{
			Filaments: filaments,
			Printers:  printers,
			Projects:  projects,
		},
	}, nil
}

// Purge deletes every row of the owner across all entity tables in one
// batch and returns the protocol id of the operation. When an archive is
// configured the account export is stored under that id first.
func (r *AccountRepository) Purge(ctx context.Context, owner string) (string, error) {
	protocol := "PURGE-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])

	if r.archive != nil {
		backup, err := r.Backup(ctx, owner)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(backup)
		if err != nil {
			return "", err
		}
		if err := r.archive.Set(protocol, data); err != nil {
			return "", fmt.Errorf("archive before purge: %w", err)
		}
	}

	batch := models.NewBatch(owner, r.s.clock()).Add(
		models.Command{Type: models.DeleteAllFilaments},
		models.Command{Type: models.DeleteAllPrinters},
		models.Command{Type: models.DeleteAllProjects},
	)
	if err := r.s.applier.Apply(ctx, batch); err != nil {
		return "", fmt.Errorf("critical failure purging account: %w", err)
	}
	log.WithFields(log.Fields{"user_id": owner, "protocol": protocol}).Info("account purged")
	return protocol, nil
}

// Purges lists the exports archived from the owner's purges, newest first.
func (r *AccountRepository) Purges(ctx context.Context, owner string) ([]models.PurgeRecord, error) {
	records := []models.PurgeRecord{}
	if r.archive == nil {
		return records, nil
	}
	for _, key := range r.archive.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		backup, err := r.archived(key)
		if err != nil {
			log.WithError(err).WithField("protocol", key).Warn("skipping unreadable purge archive")
			continue
		}
		if backup.Metadata.UserID != owner {
			continue
		}
		records = append(records, models.PurgeRecord{
			Protocol: key,
			PurgedAt: backup.Metadata.GeneratedAt,
			Counts:   backup.Metadata.Counts,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PurgedAt.After(records[j].PurgedAt)
	})
	return records, nil
}

// Archived returns the export kept by the owner's purge with protocol.
// Exports of other accounts are reported as not found.
func (r *AccountRepository) Archived(owner, protocol string) (*models.Backup, error) {
	if r.archive == nil {
		return nil, ErrNotFound
	}
	backup, err := r.archived(protocol)
	if err != nil {
		return nil, err
	}
	if backup.Metadata.UserID != owner {
		return nil, ErrNotFound
	}
	return backup, nil
}

// DiscardArchived deletes the export kept by the owner's purge with
// protocol.
func (r *AccountRepository) DiscardArchived(owner, protocol string) error {
	if _, err := r.Archived(owner, protocol); err != nil {
		return err
	}
	if err := r.archive.Delete(protocol); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": owner, "protocol": protocol}).Info("purge archive discarded")
	return nil
}

func (r *AccountRepository) archived(protocol string) (*models.Backup, error) {
	raw, err := r.archive.Get(protocol)
	if err != nil {
		return nil, err
	}
	var backup models.Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		return nil, fmt.Errorf("decode purge archive %s: %w", protocol, err)
	}
	return &backup, nil
}
