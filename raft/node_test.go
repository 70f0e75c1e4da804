package raft

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/devadigapratham/printlog/store"
	"github.com/hashicorp/raft"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.NewSchema(db).Ensure(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func newTestNode(t *testing.T, db *gorm.DB) *Node {
	t.Helper()
	node, err := NewNode(&Config{NodeID: "test", Bootstrap: true}, db)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(func() { _ = node.Shutdown() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := node.WaitForLeader(ctx); err != nil {
		t.Fatalf("wait for leader: %v", err)
	}
	// leadership is established once the node reports itself as leader
	deadline := time.Now().Add(5 * time.Second)
	for !node.Leader() {
		if time.Now().After(deadline) {
			t.Fatalf("node never became leader, state %s", node.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
	return node
}

func TestNodeAppliesBatchThroughStore(t *testing.T) {
	db := newTestDB(t)
	node := newTestNode(t, db)
	s := store.New(db, node)
	ctx := context.Background()

	patch, err := models.NormalizeFilament([]byte(`{"id":"f1","nome":"PLA","peso_total":1000}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if _, err := s.Filaments.Save(ctx, "u1", patch); err != nil {
		t.Fatalf("save: %v", err)
	}
	f, err := s.Filaments.Get(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.CurrentWeight != 1000 {
		t.Fatalf("current weight = %v", f.CurrentWeight)
	}

	idx, err := store.LastApplied(db)
	if err != nil || idx == 0 {
		t.Fatalf("applied index not recorded: %d, %v", idx, err)
	}
}

func TestNodeReturnsStoreErrors(t *testing.T) {
	db := newTestDB(t)
	node := newTestNode(t, db)

	batch := models.NewBatch("u1", time.Now()).Add(models.Command{Type: models.SetFilamentWeight, ID: "missing", Weight: 1})
	if err := node.Apply(context.Background(), batch); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from the state machine, got %v", err)
	}

	// the log keeps moving after a rejected batch
	ok := models.NewBatch("u1", time.Now()).Add(models.Command{Type: models.DeleteAllPrinters})
	if err := node.Apply(context.Background(), ok); err != nil {
		t.Fatalf("apply after rejection: %v", err)
	}
}

func TestNodeRejectsInvalidBatch(t *testing.T) {
	db := newTestDB(t)
	node := newTestNode(t, db)

	if err := node.Apply(context.Background(), models.NewBatch("", time.Now())); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestFSMSkipsAlreadyAppliedEntries(t *testing.T) {
	db := newTestDB(t)
	fsm := NewFSM(db)

	f := &models.Filament{ID: "f1", Name: "PLA", TotalWeight: 1000, CurrentWeight: 1000}
	create := models.NewBatch("u1", time.Now()).Add(models.Command{Type: models.UpsertFilament, Filament: f})
	data, _ := create.Marshal()
	if res := fsm.Apply(&raft.Log{Index: 1, Data: data}); res != nil {
		t.Fatalf("apply create: %v", res)
	}

	consume := models.NewBatch("u1", time.Now()).Add(models.Command{Type: models.ConsumeFilament, ID: "f1", Weight: 100})
	data, _ = consume.Marshal()
	for i := 0; i < 2; i++ {
		// replaying index 2 must not consume twice
		if res := fsm.Apply(&raft.Log{Index: 2, Data: data}); res != nil {
			t.Fatalf("apply consume: %v", res)
		}
	}

	var got models.Filament
	if err := db.Where("user_id = ? AND id = ?", "u1", "f1").Take(&got).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentWeight != 900 {
		t.Fatalf("current weight = %v, want 900", got.CurrentWeight)
	}
}

type memorySink struct {
	bytes.Buffer
	cancelled bool
}

func (s *memorySink) ID() string    { return "mem" }
func (s *memorySink) Close() error  { return nil }
func (s *memorySink) Cancel() error { s.cancelled = true; return nil }

func TestFSMSnapshotRestore(t *testing.T) {
	src := newTestDB(t)
	fsm := NewFSM(src)

	p := &models.Printer{ID: "p1", Name: "Ender", Status: models.PrinterIdle, MaintenanceInterval: 300, History: []byte("[]")}
	batch := models.NewBatch("u1", time.Now()).Add(models.Command{Type: models.UpsertPrinter, Printer: p})
	data, _ := batch.Marshal()
	if res := fsm.Apply(&raft.Log{Index: 7, Data: data}); res != nil {
		t.Fatalf("apply: %v", res)
	}

	snap, err := fsm.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	sink := &memorySink{}
	if err := snap.Persist(sink); err != nil {
		t.Fatalf("persist: %v", err)
	}
	snap.Release()

	dst := newTestDB(t)
	restored := NewFSM(dst)
	if err := restored.Restore(io.NopCloser(&sink.Buffer)); err != nil {
		t.Fatalf("restore: %v", err)
	}

	var got models.Printer
	if err := dst.Where("user_id = ? AND id = ?", "u1", "p1").Take(&got).Error; err != nil {
		t.Fatalf("printer missing after restore: %v", err)
	}
	if idx, _ := store.LastApplied(dst); idx != 7 {
		t.Fatalf("applied index = %d, want 7", idx)
	}
}

func TestNodeApplyStopsAtExpiredDeadline(t *testing.T) {
	db := newTestDB(t)
	node := newTestNode(t, db)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	f := &models.Filament{ID: "f1", Name: "PLA", TotalWeight: 1000, CurrentWeight: 1000}
	batch := models.NewBatch("u1", time.Now()).Add(models.Command{Type: models.UpsertFilament, Filament: f})
	if err := node.Apply(ctx, batch); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if _, err := store.New(db, node).Filaments.Get(context.Background(), "u1", "f1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("batch applied after its deadline: %v", err)
	}
}

func TestParsePeers(t *testing.T) {
	servers, err := ParsePeers([]string{"node1=127.0.0.1:7000", " node2 = 127.0.0.1:7001", "", "node3=10.0.0.3:7000"}, "node1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("servers = %+v", servers)
	}
	if servers[0].ID != "node2" || servers[0].Address != "127.0.0.1:7001" || servers[1].ID != "node3" {
		t.Fatalf("servers = %+v", servers)
	}

	for _, bad := range [][]string{{"127.0.0.1:7001"}, {"=127.0.0.1:7001"}, {"node2="}, {"node2=a:1", "node2=b:2"}} {
		if _, err := ParsePeers(bad, "node1"); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}
