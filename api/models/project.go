// api/models/project.go
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/datatypes"
)

// Project lifecycle statuses, stored inside the project data blob
const (
	ProjectDraft        = "rascunho"
	ProjectApproved     = "aprovado"
	ProjectInProduction = "producao"
	ProjectFinished     = "finalizado"
)

// DefaultProjectLabel is used when neither a label nor a project name is sent.
const DefaultProjectLabel = "Sem nome"

// Project represents a budget/quote. Inputs (entradas), computed results
// (resultados) and the lifecycle status live in the Data blob.
type Project struct {
	UserID    string         `json:"user_id" gorm:"primaryKey;type:text"`
	ID        string         `json:"id" gorm:"primaryKey;type:text"`
	Label     string         `json:"label" gorm:"column:label;type:text;not null;default:''"`
	Data      datatypes.JSON `json:"data" gorm:"column:data"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime:false;index"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TableName pins the table name used by the schema initializer.
func (Project) TableName() string { return "projects" }

// Status returns the embedded lifecycle status, draft when unset.
func (p *Project) Status() string {
	status := gjson.GetBytes(p.Data, "status").String()
	if status == "" {
		return ProjectDraft
	}
	return status
}

// SetStatus rewrites the embedded status inside the data blob.
func (p *Project) SetStatus(status string) error {
	data, err := SetDataStatus(p.Data, status)
	if err != nil {
		return err
	}
	p.Data = data
	return nil
}

// SetDataStatus returns a copy of data with its status field replaced.
func SetDataStatus(data []byte, status string) (datatypes.JSON, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	out, err := sjson.SetBytes(data, "status", status)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

// IsValidProjectStatus checks if a project status is valid
func IsValidProjectStatus(status string) bool {
	switch status {
	case ProjectDraft, ProjectApproved, ProjectInProduction, ProjectFinished:
		return true
	}
	return false
}

// ValidateProjectStatusChange checks if a status transition is valid
func ValidateProjectStatusChange(currentStatus, newStatus string) error {
	if !IsValidProjectStatus(newStatus) {
		return errors.New("invalid project status")
	}
	if currentStatus == newStatus {
		return nil
	}
	switch currentStatus {
	case ProjectDraft:
		if newStatus != ProjectApproved {
			return errors.New("a draft can only be approved")
		}
	case ProjectApproved:
		if newStatus != ProjectInProduction && newStatus != ProjectDraft {
			return errors.New("an approved project can only go to production or back to draft")
		}
	case ProjectInProduction:
		if newStatus != ProjectFinished && newStatus != ProjectApproved {
			return errors.New("a project in production can only be finished or returned to approved")
		}
	default:
		return errors.New("invalid status transition")
	}
	return nil
}

// ProjectPatch holds the fields present in a project payload.
type ProjectPatch struct {
	ID     *string
	Label  *string
	Data   datatypes.JSON
	Status *string
}

// RequestedStatus returns the status the payload asks for: the explicit
// status field first, then the one embedded in the data blob. Unknown
// statuses are ignored.
func (pp ProjectPatch) RequestedStatus() string {
	if pp.Status != nil && IsValidProjectStatus(*pp.Status) {
		return *pp.Status
	}
	if status := gjson.GetBytes(pp.Data, "status").String(); IsValidProjectStatus(status) {
		return status
	}
	return ""
}

// Apply copies every present field onto p. On a stored project (non-empty
// data) a new data blob keeps the current status unless the payload asks
// for a change, and that change must follow the lifecycle.
func (pp ProjectPatch) Apply(p *Project) error {
	current := ""
	if len(p.Data) > 0 {
		current = p.Status()
	}
	if pp.ID != nil {
		p.ID = *pp.ID
	}
	if pp.Data != nil {
		p.Data = pp.Data
	}
	if len(p.Data) == 0 {
		p.Data = datatypes.JSON("{}")
	}
	status := pp.RequestedStatus()
	if current != "" {
		if status == "" {
			status = current
		} else if err := ValidateProjectStatusChange(current, status); err != nil {
			return err
		}
	}
	if status != "" {
		if err := p.SetStatus(status); err != nil {
			return err
		}
	}
	if pp.Label != nil && strings.TrimSpace(*pp.Label) != "" {
		p.Label = strings.TrimSpace(*pp.Label)
	}
	if p.Label == "" {
		p.Label = projectName(p.Data)
	}
	return nil
}

// Build produces a new project from the patch, defaulting the status to draft.
func (pp ProjectPatch) Build() (Project, error) {
	var p Project
	if err := pp.Apply(&p); err != nil {
		return Project{}, err
	}
	if !gjson.GetBytes(p.Data, "status").Exists() {
		if err := p.SetStatus(ProjectDraft); err != nil {
			return Project{}, err
		}
	}
	return p, nil
}

func projectName(data []byte) string {
	for _, path := range []string{"entradas.nomeProjeto", "entradas.nome_projeto", "entradas.nome", "nomeProjeto"} {
		if name := strings.TrimSpace(gjson.GetBytes(data, path).String()); name != "" {
			return name
		}
	}
	return DefaultProjectLabel
}
