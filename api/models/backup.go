// api/models/backup.go
package models

import "time"

// BackupVersion is the format version written into export metadata.
const BackupVersion = "1"

// Backup is a read-only snapshot of everything an account owns.
type Backup struct {
	Success  bool           `json:"success"`
	Metadata BackupMetadata `json:"metadata"`
	Data     BackupData     `json:"data"`
}

// BackupMetadata describes when and for whom a backup was generated.
type BackupMetadata struct {
	GeneratedAt time.Time      `json:"generated_at"`
	UserID      string         `json:"user_id"`
	Version     string         `json:"version"`
	Counts      map[string]int `json:"counts"`
}

// BackupData holds the exported rows per entity.
type BackupData struct {
	Filaments []Filament `json:"filaments"`
	Printers  []Printer  `json:"printers"`
	Projects  []Project  `json:"projects"`
}

// PurgeRecord lists one export kept from a purge.
type PurgeRecord struct {
	Protocol string         `json:"protocol"`
	PurgedAt time.Time      `json:"purged_at"`
	Counts   map[string]int `json:"counts"`
}
