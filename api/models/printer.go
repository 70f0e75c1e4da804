// api/models/printer.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// Printer statuses
const (
	PrinterIdle        = "idle"
	PrinterPrinting    = "printing"
	PrinterMaintenance = "maintenance"
	PrinterOffline     = "offline"
)

// DefaultMaintenanceInterval is used when a printer is saved without a
// positive maintenance interval, in hours.
const DefaultMaintenanceInterval = 300

// Printer represents a 3D printer owned by one account
type Printer struct {
	UserID              string         `json:"user_id" gorm:"primaryKey;type:text"`
	ID                  string         `json:"id" gorm:"primaryKey;type:text"`
	Name                string         `json:"nome" gorm:"column:nome;type:text;not null;default:''"`
	Brand               string         `json:"marca" gorm:"column:marca;type:text;not null;default:''"`
	Model               string         `json:"modelo" gorm:"column:modelo;type:text;not null;default:''"`
	Status              string         `json:"status" gorm:"column:status;type:text;not null;default:'idle'"`
	Power               float64        `json:"potencia" gorm:"column:potencia;not null;default:0"`
	Price               float64        `json:"preco" gorm:"column:preco;not null;default:0"`
	TotalYield          float64        `json:"rendimento_total" gorm:"column:rendimento_total;not null;default:0"`
	TotalHours          float64        `json:"horas_totais" gorm:"column:horas_totais;not null;default:0"`
	LastMaintenanceHour float64        `json:"ultima_manutencao_hora" gorm:"column:ultima_manutencao_hora;not null;default:0"`
	MaintenanceInterval float64        `json:"intervalo_manutencao" gorm:"column:intervalo_manutencao;not null;default:300"`
	History             datatypes.JSON `json:"historico" gorm:"column:historico"`
	CreatedAt           time.Time      `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt           time.Time      `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TableName pins the table name used by the schema initializer.
func (Printer) TableName() string { return "printers" }

// NeedsMaintenance reports whether the printer ran past its maintenance interval.
func (p *Printer) NeedsMaintenance() bool {
	return p.MaintenanceInterval > 0 && p.TotalHours-p.LastMaintenanceHour >= p.MaintenanceInterval
}

// IsValidPrinterStatus checks if a printer status is valid
func IsValidPrinterStatus(status string) bool {
	validStatuses := []string{PrinterIdle, PrinterPrinting, PrinterMaintenance, PrinterOffline}

	for _, vs := range validStatuses {
		if status == vs {
			return true
		}
	}
	return false
}

// PrinterPatch holds the fields present in a printer payload.
type PrinterPatch struct {
	ID                  *string
	Name                *string
	Brand               *string
	Model               *string
	Status              *string
	Power               *float64
	Price               *float64
	TotalYield          *float64
	TotalHours          *float64
	LastMaintenanceHour *float64
	MaintenanceInterval *float64
	History             datatypes.JSON
}

// Apply copies every present field onto p.
func (pp PrinterPatch) Apply(p *Printer) {
	if pp.ID != nil {
		p.ID = *pp.ID
	}
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Brand != nil {
		p.Brand = *pp.Brand
	}
	if pp.Model != nil {
		p.Model = *pp.Model
	}
	if pp.Status != nil && IsValidPrinterStatus(*pp.Status) {
		p.Status = *pp.Status
	}
	if pp.Power != nil {
		p.Power = *pp.Power
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.TotalYield != nil {
		p.TotalYield = *pp.TotalYield
	}
	if pp.TotalHours != nil {
		p.TotalHours = *pp.TotalHours
	}
	if pp.LastMaintenanceHour != nil {
		p.LastMaintenanceHour = *pp.LastMaintenanceHour
	}
	if pp.MaintenanceInterval != nil {
		p.MaintenanceInterval = *pp.MaintenanceInterval
	}
	if pp.History != nil {
		p.History = pp.History
	}
	p.applyDefaults()
}

// Build produces a new printer from the patch with creation defaults.
func (pp PrinterPatch) Build() Printer {
	var p Printer
	pp.Apply(&p)
	return p
}

func (p *Printer) applyDefaults() {
	if !IsValidPrinterStatus(p.Status) {
		p.Status = PrinterIdle
	}
	if p.MaintenanceInterval <= 0 {
		p.MaintenanceInterval = DefaultMaintenanceInterval
	}
	if len(p.History) == 0 {
		p.History = datatypes.JSON("[]")
	}
}
