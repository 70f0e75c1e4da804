// api/models/models.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CommandType represents the type of mutation carried by a batch
type CommandType string

const (
	UpsertFilament     CommandType = "UPSERT_FILAMENT"
	SetFilamentWeight  CommandType = "SET_FILAMENT_WEIGHT"
	ConsumeFilament    CommandType = "CONSUME_FILAMENT"
	DeleteFilament     CommandType = "DELETE_FILAMENT"
	DeleteAllFilaments CommandType = "DELETE_ALL_FILAMENTS"

	UpsertPrinter           CommandType = "UPSERT_PRINTER"
	SetPrinterStatus        CommandType = "SET_PRINTER_STATUS"
	AddPrinterHours         CommandType = "ADD_PRINTER_HOURS"
	ResetPrinterMaintenance CommandType = "RESET_PRINTER_MAINTENANCE"
	DeletePrinter           CommandType = "DELETE_PRINTER"
	DeleteAllPrinters       CommandType = "DELETE_ALL_PRINTERS"

	UpsertProject     CommandType = "UPSERT_PROJECT"
	SetProjectStatus  CommandType = "SET_PROJECT_STATUS"
	ApproveProject    CommandType = "APPROVE_PROJECT"
	DeleteProject     CommandType = "DELETE_PROJECT"
	DeleteAllProjects CommandType = "DELETE_ALL_PROJECTS"
)

// Command is a single mutation inside a batch. Every command is scoped to
// the owner of the batch that carries it. On UpsertProject, Status is the
// lifecycle change requested by the caller; empty keeps the stored status.
type Command struct {
	Type     CommandType `json:"type"`
	ID       string      `json:"id,omitempty"`
	Filament *Filament   `json:"filament,omitempty"`
	Printer  *Printer    `json:"printer,omitempty"`
	Project  *Project    `json:"project,omitempty"`
	Weight   float64     `json:"weight,omitempty"`
	Hours    float64     `json:"hours,omitempty"`
	Status   string      `json:"status,omitempty"`
}

// Batch is the unit of replication: all commands are applied together or
// not at all.
type Batch struct {
	OwnerID  string    `json:"owner_id"`
	IssuedAt time.Time `json:"issued_at"`
	Commands []Command `json:"commands"`
}

// NewBatch creates an empty batch for the given owner stamped with now.
func NewBatch(ownerID string, now time.Time) *Batch {
	return &Batch{OwnerID: ownerID, IssuedAt: now.UTC()}
}

// Add appends commands to the batch and returns it for chaining.
func (b *Batch) Add(cmds ...Command) *Batch {
	b.Commands = append(b.Commands, cmds...)
	return b
}

// Validate checks that a batch can be applied
func (b *Batch) Validate() error {
	if b.OwnerID == "" {
		return errors.New("batch has no owner")
	}
	if len(b.Commands) == 0 {
		return errors.New("batch is empty")
	}
	for i, cmd := range b.Commands {
		switch cmd.Type {
		case UpsertFilament:
			if cmd.Filament == nil {
				return fmt.Errorf("command %d: filament is nil", i)
			}
		case UpsertPrinter:
			if cmd.Printer == nil {
				return fmt.Errorf("command %d: printer is nil", i)
			}
		case UpsertProject:
			if cmd.Project == nil {
				return fmt.Errorf("command %d: project is nil", i)
			}
		case DeleteAllFilaments, DeleteAllPrinters, DeleteAllProjects:
		default:
			if cmd.ID == "" {
				return fmt.Errorf("command %d (%s): id is empty", i, cmd.Type)
			}
		}
	}
	return nil
}

// Marshal serializes a batch to JSON
func (b *Batch) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBatch deserializes a batch from JSON
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	err := json.Unmarshal(data, &b)
	return &b, err
}
