package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := NewSchema(db).Ensure(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db := newTestDB(t)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(db, NewLocalApplier(db), opts...)
}

func mustFilament(t *testing.T, body string) models.FilamentPatch {
	t.Helper()
	p, err := models.NormalizeFilament([]byte(body))
	if err != nil {
		t.Fatalf("normalize filament: %v", err)
	}
	return p
}

func mustPrinter(t *testing.T, body string) models.PrinterPatch {
	t.Helper()
	p, err := models.NormalizePrinter([]byte(body))
	if err != nil {
		t.Fatalf("normalize printer: %v", err)
	}
	return p
}

func mustProject(t *testing.T, body string) models.ProjectPatch {
	t.Helper()
	p, err := models.NormalizeProject([]byte(body))
	if err != nil {
		t.Fatalf("normalize project: %v", err)
	}
	return p
}

func TestFilamentCreateWithoutIDGeneratesOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"nome":"PLA Preto","pesoTotal":1000}`))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if f.ID == "" {
		t.Fatalf("expected generated id")
	}
	if f.CurrentWeight != 1000 {
		t.Fatalf("current weight should default to total, got %v", f.CurrentWeight)
	}
	if !f.CreatedAt.Equal(fixedNow) {
		t.Fatalf("created_at = %v, want %v", f.CreatedAt, fixedNow)
	}

	list, err := s.Filaments.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "PLA Preto" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestFilamentPartialUpdateMergesExistingRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f1","nome":"PETG","marca":"Voolt","peso_total":1000,"peso_atual":800,"preco":120}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f1","favorito":true}`)); err != nil {
		t.Fatalf("partial save: %v", err)
	}

	f, err := s.Filaments.Get(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !f.Favorite || f.Brand != "Voolt" || f.CurrentWeight != 800 || f.Price != 120 {
		t.Fatalf("partial update lost fields: %+v", f)
	}
}

func TestFilamentWeightIsClamped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f1","peso_total":1000,"peso_atual":1500}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, _ := s.Filaments.Get(ctx, "u1", "f1")
	if f.CurrentWeight != 1000 {
		t.Fatalf("save should clamp to total, got %v", f.CurrentWeight)
	}

	f, err := s.Filaments.UpdateWeight(ctx, "u1", "f1", -20)
	if err != nil {
		t.Fatalf("update weight: %v", err)
	}
	if f.CurrentWeight != 0 {
		t.Fatalf("negative weight should clamp to 0, got %v", f.CurrentWeight)
	}

	if _, err := s.Filaments.UpdateWeight(ctx, "u1", "missing", 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Filaments.Save(ctx, "alice", mustFilament(t, `{"id":"shared","nome":"Alice spool","peso_total":500}`)); err != nil {
		t.Fatalf("save alice: %v", err)
	}
	// bob reuses alice's id: he gets his own row
	if _, err := s.Filaments.Save(ctx, "bob", mustFilament(t, `{"id":"shared","nome":"Bob spool","peso_total":750}`)); err != nil {
		t.Fatalf("save bob: %v", err)
	}

	a, err := s.Filaments.Get(ctx, "alice", "shared")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}
	if a.Name != "Alice spool" || a.TotalWeight != 500 {
		t.Fatalf("alice row was overwritten: %+v", a)
	}

	list, _ := s.Filaments.List(ctx, "bob")
	if len(list) != 1 || list[0].Name != "Bob spool" {
		t.Fatalf("bob list = %+v", list)
	}

	if err := s.Filaments.DeleteAll(ctx, "bob"); err != nil {
		t.Fatalf("delete all bob: %v", err)
	}
	if _, err := s.Filaments.Get(ctx, "alice", "shared"); err != nil {
		t.Fatalf("alice row should survive bob's delete-all: %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Printers.Save(ctx, "u1", mustPrinter(t, `{"id":"p1","nome":"Ender"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Printers.Delete(ctx, "u1", "p1"); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}
	if _, err := s.Printers.Get(ctx, "u1", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPrinterRoundTripDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved, err := s.Printers.Save(ctx, "u1", mustPrinter(t, `{"id":"p1","nome":"Bambu","status":"desconhecido","intervaloManutencao":0,"historico":[{"h":1}]}`))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.MaintenanceInterval != models.DefaultMaintenanceInterval {
		t.Fatalf("interval = %v, want %d", saved.MaintenanceInterval, models.DefaultMaintenanceInterval)
	}

	p, err := s.Printers.Get(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != models.PrinterIdle {
		t.Fatalf("status = %q, want idle", p.Status)
	}
	if p.MaintenanceInterval != models.DefaultMaintenanceInterval {
		t.Fatalf("stored interval = %v", p.MaintenanceInterval)
	}
	if gjson.GetBytes(p.History, "0.h").Int() != 1 {
		t.Fatalf("history not kept: %s", p.History)
	}
}

func TestPrinterStatusAndMaintenance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Printers.Save(ctx, "u1", mustPrinter(t, `{"id":"p1","nome":"Prusa","horas_totais":320,"ultima_manutencao_hora":0}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Printers.UpdateStatus(ctx, "u1", "p1", "broken"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	p, err := s.Printers.UpdateStatus(ctx, "u1", "p1", models.PrinterMaintenance)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !p.NeedsMaintenance() {
		t.Fatalf("printer at 320h with 300h interval should need maintenance")
	}

	p, err = s.Printers.ResetMaintenance(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if p.LastMaintenanceHour != 320 || p.Status != models.PrinterIdle || p.NeedsMaintenance() {
		t.Fatalf("unexpected printer after reset: %+v", p)
	}
}

func TestProjectLabelDefaultsAndOrder(t *testing.T) {
	ctx := context.Background()
	clock := fixedNow
	s := newTestStore(t, WithClock(func() time.Time { return clock }))

	first, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"entradas":{"nomeProjeto":"Vaso"}}`))
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	if first.Label != "Vaso" || first.Status() != models.ProjectDraft {
		t.Fatalf("unexpected first project: label=%q status=%q", first.Label, first.Status())
	}

	clock = fixedNow.Add(time.Hour)
	second, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"data":{}}`))
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if second.Label != models.DefaultProjectLabel {
		t.Fatalf("label = %q, want %q", second.Label, models.DefaultProjectLabel)
	}

	list, err := s.Projects.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("projects should be newest first: %+v", list)
	}
}

func TestProjectStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"id":"pr1","label":"Suporte"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Projects.UpdateStatus(ctx, "u1", "pr1", models.ProjectFinished); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("draft -> finalizado should be rejected, got %v", err)
	}
	p, err := s.Projects.UpdateStatus(ctx, "u1", "pr1", models.ProjectApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if p.Status() != models.ProjectApproved || p.Label != "Suporte" {
		t.Fatalf("unexpected project: %+v", p)
	}
}

func seedApproval(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"id":"pr1","label":"Miniatura","data":{"entradas":{"nomeProjeto":"Miniatura"}}}`)); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if _, err := s.Printers.Save(ctx, "u1", mustPrinter(t, `{"id":"p1","nome":"Ender","horas_totais":100}`)); err != nil {
		t.Fatalf("seed printer: %v", err)
	}
	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f1","nome":"PLA","peso_total":1000,"peso_atual":1000}`)); err != nil {
		t.Fatalf("seed filament f1: %v", err)
	}
	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f2","nome":"TPU","peso_total":500,"peso_atual":30}`)); err != nil {
		t.Fatalf("seed filament f2: %v", err)
	}
}

func TestApproveBudgetUpdatesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedApproval(t, s)

	req, err := models.NormalizeApproval([]byte(`{
		"projectId":"pr1","printerId":"p1","totalTime":12.5,
		"filaments":[{"id":"f1","peso":120},{"id":"f2","peso":80},{"id":"manual","peso":50},{"id":"ghost","peso":10}]
	}`))
	if err != nil {
		t.Fatalf("normalize approval: %v", err)
	}
	if err := s.Budgets.Approve(ctx, "u1", req); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pr, _ := s.Projects.Get(ctx, "u1", "pr1")
	if pr.Status() != models.ProjectApproved {
		t.Fatalf("project status = %q", pr.Status())
	}
	if gjson.GetBytes(pr.Data, "entradas.nomeProjeto").String() != "Miniatura" {
		t.Fatalf("approval dropped project data: %s", pr.Data)
	}
	p, _ := s.Printers.Get(ctx, "u1", "p1")
	if p.TotalHours != 112.5 || p.Status != models.PrinterPrinting {
		t.Fatalf("unexpected printer: hours=%v status=%q", p.TotalHours, p.Status)
	}
	f1, _ := s.Filaments.Get(ctx, "u1", "f1")
	if f1.CurrentWeight != 880 {
		t.Fatalf("f1 weight = %v, want 880", f1.CurrentWeight)
	}
	f2, _ := s.Filaments.Get(ctx, "u1", "f2")
	if f2.CurrentWeight != 0 {
		t.Fatalf("f2 weight = %v, want 0", f2.CurrentWeight)
	}

	if err := s.Budgets.Approve(ctx, "u1", req); !errors.Is(err, ErrConflict) {
		t.Fatalf("second approval should conflict, got %v", err)
	}
	f1, _ = s.Filaments.Get(ctx, "u1", "f1")
	if f1.CurrentWeight != 880 {
		t.Fatalf("second approval changed inventory: %v", f1.CurrentWeight)
	}
}

// interleavingApplier submits another write before applying each batch,
// like a second request landing between the read and the replicated write.
type interleavingApplier struct {
	next   Applier
	before func()
}

func (a *interleavingApplier) Apply(ctx context.Context, batch *models.Batch) error {
	if hook := a.before; hook != nil {
		a.before = nil
		hook()
	}
	return a.next.Apply(ctx, batch)
}

func TestConcurrentApprovalsBookStockOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	applier := &interleavingApplier{next: NewLocalApplier(db)}
	s := New(db, applier, WithClock(func() time.Time { return fixedNow }))
	if _, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"id":"pr1","label":"Chaveiro"}`)); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	if _, err := s.Printers.Save(ctx, "u1", mustPrinter(t, `{"id":"p1","nome":"MK4","horas_totais":10}`)); err != nil {
		t.Fatalf("seed printer: %v", err)
	}
	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f1","nome":"PLA","peso_total":1000,"peso_atual":100}`)); err != nil {
		t.Fatalf("seed filament: %v", err)
	}

	req := models.Approval{
		ProjectID: "pr1",
		PrinterID: "p1",
		TotalTime: 5,
		Filaments: []models.FilamentUsage{{ID: "f1", Weight: 50}},
	}
	var innerErr error
	applier.before = func() { innerErr = s.Budgets.Approve(ctx, "u1", req) }

	outerErr := s.Budgets.Approve(ctx, "u1", req)
	if innerErr != nil {
		t.Fatalf("first approval: %v", innerErr)
	}
	if !errors.Is(outerErr, ErrConflict) {
		t.Fatalf("second approval should conflict, got %v", outerErr)
	}

	p, _ := s.Printers.Get(ctx, "u1", "p1")
	f, _ := s.Filaments.Get(ctx, "u1", "f1")
	if p.TotalHours != 15 || f.CurrentWeight != 50 {
		t.Fatalf("stock booked twice: hours=%v weight=%v", p.TotalHours, f.CurrentWeight)
	}
}

func TestProjectEditKeepsApprovedStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	applier := &interleavingApplier{next: NewLocalApplier(db)}
	s := New(db, applier, WithClock(func() time.Time { return fixedNow }))
	seedApproval(t, s)

	approval := models.Approval{ProjectID: "pr1", Filaments: []models.FilamentUsage{{ID: "f1", Weight: 100}}}
	if err := s.Budgets.Approve(ctx, "u1", approval); err != nil {
		t.Fatalf("approve: %v", err)
	}

	edited, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"id":"pr1","data":{"entradas":{"nomeProjeto":"Miniatura","qtd":3}}}`))
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Status() != models.ProjectApproved {
		t.Fatalf("edit reset status to %q", edited.Status())
	}
	if err := s.Budgets.Approve(ctx, "u1", approval); !errors.Is(err, ErrConflict) {
		t.Fatalf("re-approval after edit should conflict, got %v", err)
	}
	f1, _ := s.Filaments.Get(ctx, "u1", "f1")
	if f1.CurrentWeight != 900 {
		t.Fatalf("f1 weight = %v, want 900", f1.CurrentWeight)
	}

	if _, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"id":"pr1","status":"finalizado"}`)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("aprovado -> finalizado through save should be rejected, got %v", err)
	}

	// a save prepared before the status moved must not write the old status back
	applier.before = func() {
		if _, err := s.Projects.UpdateStatus(ctx, "u1", "pr1", models.ProjectInProduction); err != nil {
			t.Errorf("update status: %v", err)
		}
	}
	if _, err := s.Projects.Save(ctx, "u1", mustProject(t, `{"id":"pr1","label":"Miniatura v2"}`)); err != nil {
		t.Fatalf("stale edit: %v", err)
	}
	pr, _ := s.Projects.Get(ctx, "u1", "pr1")
	if pr.Status() != models.ProjectInProduction || pr.Label != "Miniatura v2" {
		t.Fatalf("unexpected project after stale edit: status=%q label=%q", pr.Status(), pr.Label)
	}
}

func TestApproveBudgetValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Budgets.Approve(ctx, "u1", models.Approval{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing project id: got %v", err)
	}
	if err := s.Budgets.Approve(ctx, "u1", models.Approval{ProjectID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing project: got %v", err)
	}
}

// failingApplier runs the batch in a transaction and then fails, so the
// whole batch must be rolled back.
type failingApplier struct {
	db *gorm.DB
}

func (a failingApplier) Apply(ctx context.Context, batch *models.Batch) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Exec(tx, batch); err != nil {
			return err
		}
		return errors.New("replication lost")
	})
}

func TestApproveBudgetIsAtomic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seeded := New(db, NewLocalApplier(db), WithClock(func() time.Time { return fixedNow }))
	seedApproval(t, seeded)

	broken := New(db, failingApplier{db: db})
	err := broken.Budgets.Approve(ctx, "u1", models.Approval{
		ProjectID: "pr1",
		PrinterID: "p1",
		TotalTime: 5,
		Filaments: []models.FilamentUsage{{ID: "f1", Weight: 100}},
	})
	if err == nil {
		t.Fatalf("expected approval to fail")
	}

	pr, _ := seeded.Projects.Get(ctx, "u1", "pr1")
	p, _ := seeded.Printers.Get(ctx, "u1", "p1")
	f1, _ := seeded.Filaments.Get(ctx, "u1", "f1")
	if pr.Status() != models.ProjectDraft || p.TotalHours != 100 || f1.CurrentWeight != 1000 {
		t.Fatalf("partial approval persisted: status=%q hours=%v weight=%v", pr.Status(), p.TotalHours, f1.CurrentWeight)
	}
}

func TestBatchWithBadCommandRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	applier := NewLocalApplier(db)

	batch := models.NewBatch("u1", fixedNow).Add(
		models.Command{Type: models.UpsertFilament, Filament: &models.Filament{ID: "f1", Name: "PLA", TotalWeight: 1000, CurrentWeight: 1000}},
		models.Command{Type: models.SetPrinterStatus, ID: "p1", Status: "exploded"},
	)
	if err := applier.Apply(ctx, batch); err == nil {
		t.Fatalf("expected batch to fail")
	}
	var count int64
	db.Model(&models.Filament{}).Count(&count)
	if count != 0 {
		t.Fatalf("first command of failed batch persisted")
	}
}

func TestBackupAndPurge(t *testing.T) {
	archive, err := NewArchive("")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	s := newTestStore(t, WithArchive(archive))
	ctx := context.Background()
	seedApproval(t, s)
	if _, err := s.Filaments.Save(ctx, "other", mustFilament(t, `{"id":"x","nome":"Other"}`)); err != nil {
		t.Fatalf("save other: %v", err)
	}

	b, err := s.Accounts.Backup(ctx, "u1")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !b.Success || b.Metadata.UserID != "u1" || b.Metadata.Counts["filaments"] != 2 ||
		len(b.Data.Printers) != 1 || len(b.Data.Projects) != 1 {
		t.Fatalf("unexpected backup: %+v", b)
	}

	protocol, err := s.Accounts.Purge(ctx, "u1")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(protocol) < len("PURGE-")+1 || protocol[:6] != "PURGE-" {
		t.Fatalf("unexpected protocol %q", protocol)
	}

	b, err = s.Accounts.Backup(ctx, "u1")
	if err != nil {
		t.Fatalf("backup after purge: %v", err)
	}
	if len(b.Data.Filaments)+len(b.Data.Printers)+len(b.Data.Projects) != 0 {
		t.Fatalf("purge left rows: %+v", b.Data)
	}
	if _, err := s.Filaments.Get(ctx, "other", "x"); err != nil {
		t.Fatalf("purge touched another account: %v", err)
	}

	raw, err := archive.Get(protocol)
	if err != nil {
		t.Fatalf("archived export missing: %v", err)
	}
	var archived models.Backup
	if err := json.Unmarshal(raw, &archived); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if len(archived.Data.Filaments) != 2 {
		t.Fatalf("archive should hold the pre-purge export, got %+v", archived.Metadata)
	}
}

func TestArchivedPurgesAreOwnerScoped(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	s := newTestStore(t, WithArchive(archive))
	ctx := context.Background()
	if _, err := s.Filaments.Save(ctx, "u1", mustFilament(t, `{"id":"f1","nome":"PLA"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	mine, err := s.Accounts.Purge(ctx, "u1")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := s.Accounts.Purge(ctx, "other"); err != nil {
		t.Fatalf("purge other: %v", err)
	}

	records, err := s.Accounts.Purges(ctx, "u1")
	if err != nil {
		t.Fatalf("purges: %v", err)
	}
	if len(records) != 1 || records[0].Protocol != mine || records[0].Counts["filaments"] != 1 {
		t.Fatalf("records = %+v", records)
	}

	if _, err := s.Accounts.Archived("other", mine); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign archive readable: %v", err)
	}
	backup, err := s.Accounts.Archived("u1", mine)
	if err != nil {
		t.Fatalf("archived: %v", err)
	}
	if len(backup.Data.Filaments) != 1 || backup.Data.Filaments[0].Name != "PLA" {
		t.Fatalf("archived export = %+v", backup.Data)
	}
	if _, err := s.Accounts.Archived("u1", "../printlog"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid key, got %v", err)
	}

	if err := s.Accounts.DiscardArchived("other", mine); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign discard: %v", err)
	}
	if err := s.Accounts.DiscardArchived("u1", mine); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := s.Accounts.Archived("u1", mine); !errors.Is(err, ErrNotFound) {
		t.Fatalf("discarded archive still readable: %v", err)
	}

	plain := newTestStore(t)
	if records, err := plain.Accounts.Purges(ctx, "u1"); err != nil || len(records) != 0 {
		t.Fatalf("store without archive: %v, %v", records, err)
	}
}

func TestBackupFailsWhenTableMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.DB().Migrator().DropTable(&models.Printer{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, err := s.Accounts.Backup(ctx, "u1"); err == nil {
		t.Fatalf("expected backup to fail without the printers table")
	}
}

func TestSchemaEnsureIsRepeatable(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	schema := NewSchema(db)
	for i := 0; i < 3; i++ {
		if err := schema.Ensure(context.Background()); err != nil {
			t.Fatalf("ensure #%d: %v", i, err)
		}
	}
	for _, table := range []string{"filaments", "printers", "projects", "applied_index"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestExportImportDataset(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()
	seedApproval(t, src)
	if err := SetApplied(src.DB(), 42); err != nil {
		t.Fatalf("set applied: %v", err)
	}

	ds, err := ExportAll(src.DB())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ds.AppliedIndex != 42 || len(ds.Filaments) != 2 {
		t.Fatalf("unexpected dataset: index=%d filaments=%d", ds.AppliedIndex, len(ds.Filaments))
	}

	dst := newTestStore(t)
	if _, err := dst.Filaments.Save(ctx, "stale", mustFilament(t, `{"id":"old"}`)); err != nil {
		t.Fatalf("save stale: %v", err)
	}
	if err := ImportAll(dst.DB(), ds); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := dst.Filaments.Get(ctx, "stale", "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("import should replace existing rows, got %v", err)
	}
	f1, err := dst.Filaments.Get(ctx, "u1", "f1")
	if err != nil || f1.CurrentWeight != 1000 {
		t.Fatalf("imported filament: %+v, %v", f1, err)
	}
	idx, _ := LastApplied(dst.DB())
	if idx != 42 {
		t.Fatalf("applied index = %d, want 42", idx)
	}
}

func TestSQLitePathFromDSN(t *testing.T) {
	cases := []struct{ dsn, want string }{
		{":memory:", ""},
		{"file::memory:?cache=shared", ""},
		{"file:data/app.db?_pragma=x", "data/app.db"},
		{"data/printlog.db", "data/printlog.db"},
		{"file:test.db?mode=memory", ""},
		{normalizeSQLiteDSN("sqlite://x/y.db"), "x/y.db"},
	}
	for _, tc := range cases {
		if got := sqlitePathFromDSN(tc.dsn); got != tc.want {
			t.Errorf("sqlitePathFromDSN(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
	if detectDialect("postgres://u@h/db") != DialectPostgres || detectDialect("host=x dbname=y") != DialectPostgres {
		t.Fatalf("postgres DSNs not detected")
	}
	if detectDialect("data/printlog.db") != DialectSQLite {
		t.Fatalf("sqlite DSN not detected")
	}
}
