// api/models/filament.go
package models

import "time"

// Filament represents a spool of filament owned by one account
type Filament struct {
	UserID        string    `json:"user_id" gorm:"primaryKey;type:text"`
	ID            string    `json:"id" gorm:"primaryKey;type:text"`
	Name          string    `json:"nome" gorm:"column:nome;type:text;not null;default:''"`
	Brand         string    `json:"marca" gorm:"column:marca;type:text;not null;default:''"`
	Material      string    `json:"material" gorm:"column:material;type:text;not null;default:''"` // PLA, PETG, ABS, TPU...
	ColorHex      string    `json:"cor_hex" gorm:"column:cor_hex;type:text;not null;default:''"`
	TotalWeight   float64   `json:"peso_total" gorm:"column:peso_total;not null;default:0"`
	CurrentWeight float64   `json:"peso_atual" gorm:"column:peso_atual;not null;default:0"`
	Price         float64   `json:"preco" gorm:"column:preco;not null;default:0"`
	OpenedAt      string    `json:"data_abertura" gorm:"column:data_abertura;type:text;not null;default:''"`
	Favorite      bool      `json:"favorito" gorm:"column:favorito;not null;default:false"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// TableName pins the table name used by the schema initializer.
func (Filament) TableName() string { return "filaments" }

// ClampWeight keeps the current weight inside [0, total].
func (f *Filament) ClampWeight() {
	f.CurrentWeight = ClampWeight(f.CurrentWeight, f.TotalWeight)
}

// ClampWeight returns w limited to the closed range [0, total].
func ClampWeight(w, total float64) float64 {
	if w < 0 {
		return 0
	}
	if total < 0 {
		total = 0
	}
	if w > total {
		return total
	}
	return w
}

// Consume returns the remaining weight after using consumed grams. The
// result never goes below zero; negative consumption counts as none.
func Consume(current, consumed float64) float64 {
	if consumed < 0 {
		consumed = 0
	}
	left := current - consumed
	if left < 0 {
		return 0
	}
	return left
}

// FilamentPatch holds the fields present in a filament payload. Nil means
// the field was not sent.
type FilamentPatch struct {
	ID            *string
	Name          *string
	Brand         *string
	Material      *string
	ColorHex      *string
	TotalWeight   *float64
	CurrentWeight *float64
	Price         *float64
	OpenedAt      *string
	Favorite      *bool
}

// Apply copies every present field onto f.
func (p FilamentPatch) Apply(f *Filament) {
	if p.ID != nil {
		f.ID = *p.ID
	}
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Brand != nil {
		f.Brand = *p.Brand
	}
	if p.Material != nil {
		f.Material = *p.Material
	}
	if p.ColorHex != nil {
		f.ColorHex = *p.ColorHex
	}
	if p.TotalWeight != nil {
		f.TotalWeight = *p.TotalWeight
	}
	if p.CurrentWeight != nil {
		f.CurrentWeight = *p.CurrentWeight
	}
	if p.Price != nil {
		f.Price = *p.Price
	}
	if p.OpenedAt != nil {
		f.OpenedAt = *p.OpenedAt
	}
	if p.Favorite != nil {
		f.Favorite = *p.Favorite
	}
}

// Build produces a new filament from the patch with creation defaults:
// a missing current weight starts as a full spool.
func (p FilamentPatch) Build() Filament {
	var f Filament
	p.Apply(&f)
	if p.CurrentWeight == nil {
		f.CurrentWeight = f.TotalWeight
	}
	f.ClampWeight()
	return f
}
