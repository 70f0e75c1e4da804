// api/models/approval.go
package models

import (
	"time"

	"github.com/tidwall/gjson"
)

// ManualFilamentID marks a material that is not tracked in inventory.
const ManualFilamentID = "manual"

// FilamentUsage is the amount of one filament consumed by an approved budget
type FilamentUsage struct {
	ID     string  `json:"id"`
	Weight float64 `json:"peso"`
}

// Tracked reports whether the usage refers to an inventory filament.
func (u FilamentUsage) Tracked() bool {
	return u.ID != "" && u.ID != ManualFilamentID
}

// Approval is the input of the budget approval transaction
type Approval struct {
	ProjectID string          `json:"projectId"`
	PrinterID string          `json:"printerId,omitempty"`
	TotalTime float64         `json:"totalTime,omitempty"`
	Filaments []FilamentUsage `json:"filaments,omitempty"`
}

var approvalKeys = struct {
	project, printer, time, filaments, usageID, usageWeight []string
}{
	project:     []string{"projectId", "project_id", "projetoId", "projeto_id", "id"},
	printer:     []string{"printerId", "printer_id", "impressoraId", "impressora_id"},
	time:        []string{"totalTime", "total_time", "tempoTotal", "tempo_total", "horas"},
	filaments:   []string{"filaments", "filamentos", "materiais"},
	usageID:     []string{"id", "filamentId", "filament_id", "filamentoId"},
	usageWeight: []string{"peso", "weight", "gramas", "grams", "peso_usado", "pesoUsado"},
}

// NormalizeApproval maps an approval payload onto the canonical request.
func NormalizeApproval(body []byte) (Approval, error) {
	obj, err := parseObject(body)
	if err != nil {
		return Approval{}, err
	}
	var a Approval
	if r, ok := lookup(obj, approvalKeys.project); ok {
		a.ProjectID = Text(r)
	}
	if r, ok := lookup(obj, approvalKeys.printer); ok {
		a.PrinterID = Text(r)
	}
	if r, ok := lookup(obj, approvalKeys.time); ok {
		a.TotalTime = Number(r)
	}
	if r, ok := lookup(obj, approvalKeys.filaments); ok && r.IsArray() {
		r.ForEach(func(_, item gjson.Result) bool {
			var u FilamentUsage
			if id, ok := lookup(item, approvalKeys.usageID); ok {
				u.ID = Text(id)
			}
			if w, ok := lookup(item, approvalKeys.usageWeight); ok {
				u.Weight = Number(w)
			}
			a.Filaments = append(a.Filaments, u)
			return true
		})
	}
	return a, nil
}

// decodeTimes fills created/updated timestamps when the payload carries them.
func decodeTimes(body []byte, created, updated *time.Time) {
	if r := gjson.GetBytes(body, "created_at"); r.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, r.String()); err == nil {
			*created = t
		}
	}
	if r := gjson.GetBytes(body, "updated_at"); r.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, r.String()); err == nil {
			*updated = t
		}
	}
}
