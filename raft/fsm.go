package raft

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/devadigapratham/printlog/store"
	"github.com/hashicorp/raft"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FSM applies replicated batches to the relational database. Every log
// entry is one batch and is applied inside one transaction together with
// the applied index, so an entry is never applied twice.
type FSM struct {
	mu sync.Mutex
	db *gorm.DB
}

// NewFSM creates a state machine writing to db.
func NewFSM(db *gorm.DB) *FSM {
	return &FSM{db: db}
}

// Apply applies a Raft log entry to the database. The returned value is
// the batch error, if any, and is handed back to the submitter through
// the apply future.
func (f *FSM) Apply(entry *raft.Log) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch, err := models.UnmarshalBatch(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal batch: %w", err)
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		applied, err := store.LastApplied(tx)
		if err != nil {
			return err
		}
		if entry.Index <= applied {
			return nil
		}
		if err := store.Exec(tx, batch); err != nil {
			return err
		}
		return store.SetApplied(tx, entry.Index)
	})
	if err != nil {
		log.WithFields(log.Fields{
			"index":    entry.Index,
			"user_id":  batch.OwnerID,
			"commands": len(batch.Commands),
		}).WithError(err).Warn("batch rejected")
		// a rejected batch still consumes its index
		if idxErr := store.SetApplied(f.db, entry.Index); idxErr != nil {
			log.WithError(idxErr).Error("failed to record applied index")
		}
		return err
	}
	return nil
}

// Snapshot exports every entity row.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ds, err := store.ExportAll(f.db)
	if err != nil {
		return nil, err
	}
	return &fsmSnapshot{data: ds}, nil
}

// Restore replaces the database content with a snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var ds store.Dataset
	if err := json.NewDecoder(rc).Decode(&ds); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := store.ImportAll(f.db, &ds); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	log.WithFields(log.Fields{
		"index":     ds.AppliedIndex,
		"filaments": len(ds.Filaments),
		"printers":  len(ds.Printers),
		"projects":  len(ds.Projects),
	}).Info("snapshot restored")
	return nil
}

// fsmSnapshot implements the raft.FSMSnapshot interface
type fsmSnapshot struct {
	data *store.Dataset
}

// Persist saves the snapshot to the provided sink
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.data); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
		return err
	}

	return nil
}

// Release is a no-op
func (s *fsmSnapshot) Release() {}
