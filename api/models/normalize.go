// api/models/normalize.go
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
)

// ErrInvalidPayload is returned when a request body is not a JSON object.
var ErrInvalidPayload = errors.New("invalid json payload")

// Accepted spellings per canonical field. The canonical key comes first
// and the first one present wins.
var (
	idKeys = []string{"id", "_id", "uuid"}

	filamentKeys = struct {
		name, brand, material, color, total, current, price, opened, favorite []string
	}{
		name:     []string{"nome", "name"},
		brand:    []string{"marca", "brand", "fabricante"},
		material: []string{"material", "tipo", "type"},
		color:    []string{"cor_hex", "corHex", "cor", "color", "colorHex", "color_hex"},
		total:    []string{"peso_total", "pesoTotal", "total_weight", "totalWeight", "total_weight_in_grams"},
		current:  []string{"peso_atual", "pesoAtual", "current_weight", "currentWeight", "remaining_weight_in_grams", "peso"},
		price:    []string{"preco", "price", "precoUnitario", "preco_unitario", "valor"},
		opened:   []string{"data_abertura", "dataAbertura", "opened_at", "openedAt"},
		favorite: []string{"favorito", "favorite", "is_favorite", "isFavorite"},
	}

	printerKeys = struct {
		name, brand, model, status, power, price, yield, hours, lastMaint, interval, history []string
	}{
		name:      []string{"nome", "name"},
		brand:     []string{"marca", "brand", "company", "fabricante"},
		model:     []string{"modelo", "model"},
		status:    []string{"status", "estado"},
		power:     []string{"potencia", "power", "watts", "consumo_w"},
		price:     []string{"preco", "price", "valor_compra", "purchase_price"},
		yield:     []string{"rendimento_total", "rendimentoTotal", "total_yield", "yield"},
		hours:     []string{"horas_totais", "horasTotais", "total_hours", "totalHours", "hours"},
		lastMaint: []string{"ultima_manutencao_hora", "ultimaManutencaoHora", "last_maintenance_hour", "lastMaintenanceHour"},
		interval:  []string{"intervalo_manutencao", "intervaloManutencao", "maintenance_interval", "maintenanceInterval"},
		history:   []string{"historico", "history"},
	}

	projectKeys = struct {
		label, data, status []string
	}{
		label:  []string{"label", "nome", "name", "title"},
		data:   []string{"data", "dados", "payload"},
		status: []string{"status"},
	}
)

// parseObject validates that body is a JSON object.
func parseObject(body []byte) (gjson.Result, error) {
	if len(bytes.TrimSpace(body)) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}, ErrInvalidPayload
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return gjson.Result{}, ErrInvalidPayload
	}
	return root, nil
}

// lookup returns the first alias present in obj.
func lookup(obj gjson.Result, keys []string) (gjson.Result, bool) {
	for _, key := range keys {
		r := obj.Get(gjson.Escape(key))
		if r.Exists() && r.Type != gjson.Null {
			return r, true
		}
	}
	return gjson.Result{}, false
}

// Text coerces a JSON value to a string. Numeric ids become their literal text.
func Text(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return strings.TrimSpace(r.Str)
	case gjson.Number:
		return r.Raw
	case gjson.True, gjson.False:
		return r.Raw
	}
	return ""
}

// Number coerces a JSON value to a float. Invalid input yields 0.
func Number(r gjson.Result) float64 {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(r.Str), ",", ".")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		v = parsed
	default:
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Flag coerces a JSON value to a bool, accepting 1/0 and string forms.
func Flag(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true", "1", "yes", "sim", "on":
			return true
		}
	}
	return false
}

func textField(obj gjson.Result, keys []string) *string {
	r, ok := lookup(obj, keys)
	if !ok {
		return nil
	}
	s := Text(r)
	return &s
}

func numberField(obj gjson.Result, keys []string) *float64 {
	r, ok := lookup(obj, keys)
	if !ok {
		return nil
	}
	n := Number(r)
	return &n
}

func flagField(obj gjson.Result, keys []string) *bool {
	r, ok := lookup(obj, keys)
	if !ok {
		return nil
	}
	b := Flag(r)
	return &b
}

// idField treats an empty id the same as an absent one.
func idField(obj gjson.Result) *string {
	id := textField(obj, idKeys)
	if id == nil || *id == "" {
		return nil
	}
	return id
}

// NormalizeFilament maps a filament payload in any accepted spelling onto
// the canonical patch.
func NormalizeFilament(body []byte) (FilamentPatch, error) {
	obj, err := parseObject(body)
	if err != nil {
		return FilamentPatch{}, err
	}
	return FilamentPatch{
		ID:            idField(obj),
		Name:          textField(obj, filamentKeys.name),
		Brand:         textField(obj, filamentKeys.brand),
		Material:      textField(obj, filamentKeys.material),
		ColorHex:      textField(obj, filamentKeys.color),
		TotalWeight:   numberField(obj, filamentKeys.total),
		CurrentWeight: numberField(obj, filamentKeys.current),
		Price:         numberField(obj, filamentKeys.price),
		OpenedAt:      textField(obj, filamentKeys.opened),
		Favorite:      flagField(obj, filamentKeys.favorite),
	}, nil
}

// NormalizePrinter maps a printer payload onto the canonical patch.
func NormalizePrinter(body []byte) (PrinterPatch, error) {
	obj, err := parseObject(body)
	if err != nil {
		return PrinterPatch{}, err
	}
	patch := PrinterPatch{
		ID:                  idField(obj),
		Name:                textField(obj, printerKeys.name),
		Brand:               textField(obj, printerKeys.brand),
		Model:               textField(obj, printerKeys.model),
		Status:              textField(obj, printerKeys.status),
		Power:               numberField(obj, printerKeys.power),
		Price:               numberField(obj, printerKeys.price),
		TotalYield:          numberField(obj, printerKeys.yield),
		TotalHours:          numberField(obj, printerKeys.hours),
		LastMaintenanceHour: numberField(obj, printerKeys.lastMaint),
		MaintenanceInterval: numberField(obj, printerKeys.interval),
	}
	if r, ok := lookup(obj, printerKeys.history); ok {
		patch.History = NormalizeHistory(r)
	}
	if patch.Status != nil {
		s := strings.ToLower(*patch.Status)
		patch.Status = &s
	}
	return patch, nil
}

// NormalizeHistory returns the canonical serialized form of a history
// value, whether it arrived as a JSON array or as a pre-serialized string.
// Anything else becomes an empty array.
func NormalizeHistory(r gjson.Result) datatypes.JSON {
	raw := r.Raw
	if r.Type == gjson.String {
		raw = r.Str
	}
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsArray() {
		return datatypes.JSON("[]")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(buf.Bytes())
}

// NormalizeProject maps a project payload onto the canonical patch. When no
// data object is sent but entradas/resultados are present at the top level,
// they are folded into the data blob.
func NormalizeProject(body []byte) (ProjectPatch, error) {
	obj, err := parseObject(body)
	if err != nil {
		return ProjectPatch{}, err
	}
	patch := ProjectPatch{
		ID:     idField(obj),
		Label:  textField(obj, projectKeys.label),
		Status: textField(obj, projectKeys.status),
	}

	if r, ok := lookup(obj, projectKeys.data); ok {
		raw := r.Raw
		if r.Type == gjson.String {
			raw = r.Str
		}
		if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
			return ProjectPatch{}, ErrInvalidPayload
		}
		patch.Data = datatypes.JSON(raw)
	} else {
		folded := map[string]json.RawMessage{}
		for _, key := range []string{"entradas", "resultados"} {
			if r := obj.Get(key); r.Exists() {
				folded[key] = json.RawMessage(r.Raw)
			}
		}
		if len(folded) > 0 {
			data, err := json.Marshal(folded)
			if err != nil {
				return ProjectPatch{}, err
			}
			patch.Data = datatypes.JSON(data)
		}
	}
	return patch, nil
}

// DecodeFilament normalizes a single filament object into the canonical shape.
func DecodeFilament(body []byte) (Filament, error) {
	patch, err := NormalizeFilament(body)
	if err != nil {
		return Filament{}, err
	}
	f := patch.Build()
	if r, ok := lookup(gjson.ParseBytes(body), []string{"user_id", "userId"}); ok {
		f.UserID = Text(r)
	}
	decodeTimes(body, &f.CreatedAt, &f.UpdatedAt)
	return f, nil
}

// DecodePrinter normalizes a single printer object into the canonical shape.
func DecodePrinter(body []byte) (Printer, error) {
	patch, err := NormalizePrinter(body)
	if err != nil {
		return Printer{}, err
	}
	p := patch.Build()
	if r, ok := lookup(gjson.ParseBytes(body), []string{"user_id", "userId"}); ok {
		p.UserID = Text(r)
	}
	decodeTimes(body, &p.CreatedAt, &p.UpdatedAt)
	return p, nil
}

// DecodeProject normalizes a single project object into the canonical shape.
func DecodeProject(body []byte) (Project, error) {
	patch, err := NormalizeProject(body)
	if err != nil {
		return Project{}, err
	}
	p, err := patch.Build()
	if err != nil {
		return Project{}, err
	}
	if r, ok := lookup(gjson.ParseBytes(body), []string{"user_id", "userId"}); ok {
		p.UserID = Text(r)
	}
	decodeTimes(body, &p.CreatedAt, &p.UpdatedAt)
	return p, nil
}

// NormalizeWeight extracts the new current weight from a quick update payload.
func NormalizeWeight(body []byte) (float64, error) {
	obj, err := parseObject(body)
	if err != nil {
		return 0, err
	}
	r, ok := lookup(obj, filamentKeys.current)
	if !ok {
		if r, ok = lookup(obj, []string{"weight", "value"}); !ok {
			return 0, fmt.Errorf("%w: missing weight", ErrInvalidPayload)
		}
	}
	return Number(r), nil
}

// NormalizeStatus extracts a lower-cased status from a status update payload.
func NormalizeStatus(body []byte) (string, error) {
	obj, err := parseObject(body)
	if err != nil {
		return "", err
	}
	r, ok := lookup(obj, printerKeys.status)
	if !ok {
		return "", fmt.Errorf("%w: missing status", ErrInvalidPayload)
	}
	return strings.ToLower(Text(r)), nil
}
