package raft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devadigapratham/printlog/api/metrics"
	"github.com/devadigapratham/printlog/api/models"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrNotLeader is returned when a batch is submitted to a follower.
var ErrNotLeader = errors.New("not the leader")

const defaultApplyTimeout = 5 * time.Second

// Node represents a node in the Raft cluster
type Node struct {
	raft      *raft.Raft
	fsm       *FSM
	transport raft.Transport
	config    *Config
	closers   []io.Closer
}

// Config represents the configuration for a Raft node. An empty RaftDir
// keeps logs, snapshots and the transport in memory.
type Config struct {
	NodeID    string
	RaftAddr  string
	RaftDir   string
	Bootstrap bool
	// Peers lists the other voters of a bootstrapped cluster as id=addr.
	Peers        []string
	ApplyTimeout time.Duration
	// ClusterSecret guards the membership endpoints. Empty disables them.
	ClusterSecret string
}

// NewNode creates a new Raft node applying committed batches to db.
func NewNode(config *Config, db *gorm.DB) (*Node, error) {
	peers, err := ParsePeers(config.Peers, config.NodeID)
	if err != nil {
		return nil, err
	}
	fsm := NewFSM(db)
	inMemory := config.RaftDir == ""

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(config.NodeID)
	raftConfig.SnapshotInterval = 20 * time.Second
	raftConfig.SnapshotThreshold = 1024
	raftConfig.LogOutput = log.StandardLogger().WriterLevel(log.DebugLevel)
	raftConfig.LogLevel = "INFO"
	if inMemory {
		raftConfig.HeartbeatTimeout = 50 * time.Millisecond
		raftConfig.ElectionTimeout = 50 * time.Millisecond
		raftConfig.LeaderLeaseTimeout = 50 * time.Millisecond
		raftConfig.CommitTimeout = 5 * time.Millisecond
	}

	n := &Node{fsm: fsm, config: config}

	var (
		logStore      raft.LogStore
		stableStore   raft.StableStore
		snapshotStore raft.SnapshotStore
		serverAddr    raft.ServerAddress
	)

	if inMemory {
		logStore = raft.NewInmemStore()
		stableStore = raft.NewInmemStore()
		snapshotStore = raft.NewInmemSnapshotStore()
		addr, transport := raft.NewInmemTransport(raft.ServerAddress(config.RaftAddr))
		serverAddr = addr
		n.transport = transport
	} else {
		if err := os.MkdirAll(config.RaftDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create raft directory: %v", err)
		}

		// Create the BoltDB store for logs
		boltLogs, err := raftboltdb.NewBoltStore(filepath.Join(config.RaftDir, "raft-log.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to create BoltDB log store: %v", err)
		}
		n.closers = append(n.closers, boltLogs)
		logStore = boltLogs

		// Create the stable store for terms and votes
		boltStable, err := raftboltdb.NewBoltStore(filepath.Join(config.RaftDir, "raft-stable.db"))
		if err != nil {
			n.closeStores()
			return nil, fmt.Errorf("failed to create BoltDB stable store: %v", err)
		}
		n.closers = append(n.closers, boltStable)
		stableStore = boltStable

		snapshotStore, err = raft.NewFileSnapshotStore(config.RaftDir, 3, raftConfig.LogOutput)
		if err != nil {
			n.closeStores()
			return nil, fmt.Errorf("failed to create snapshot store: %v", err)
		}

		// Setup TCP transport
		addr, err := net.ResolveTCPAddr("tcp", config.RaftAddr)
		if err != nil {
			n.closeStores()
			return nil, fmt.Errorf("failed to resolve TCP address: %v", err)
		}
		transport, err := raft.NewTCPTransport(config.RaftAddr, addr, 3, 10*time.Second, raftConfig.LogOutput)
		if err != nil {
			n.closeStores()
			return nil, fmt.Errorf("failed to create TCP transport: %v", err)
		}
		serverAddr = transport.LocalAddr()
		n.transport = transport
	}

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, n.transport)
	if err != nil {
		n.closeStores()
		return nil, fmt.Errorf("failed to create Raft instance: %v", err)
	}
	n.raft = r

	if config.Bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raft.ServerID(config.NodeID),
					Address: serverAddr,
				},
			},
		}
		configuration.Servers = append(configuration.Servers, peers...)

		f := r.BootstrapCluster(configuration)
		if err := f.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			_ = n.Shutdown()
			return nil, fmt.Errorf("failed to bootstrap cluster: %v", err)
		}
	}

	log.WithFields(log.Fields{
		"node_id":   config.NodeID,
		"raft_addr": serverAddr,
		"in_memory": inMemory,
		"bootstrap": config.Bootstrap,
	}).Info("raft node started")

	return n, nil
}

// Apply replicates a batch and waits until this node's state machine has
// applied it. It implements store.Applier.
func (n *Node) Apply(ctx context.Context, batch *models.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	data, err := batch.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %v", err)
	}

	timeout := n.config.ApplyTimeout
	if timeout <= 0 {
		timeout = defaultApplyTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	// raft treats a zero timeout as no timeout at all
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	start := time.Now()
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		metrics.ObserveBatch(metrics.BatchFailed, time.Since(start))
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) {
			return ErrNotLeader
		}
		return fmt.Errorf("failed to apply batch to Raft log: %w", err)
	}

	// The state machine result carries store errors such as not found.
	if appErr, ok := future.Response().(error); ok && appErr != nil {
		metrics.ObserveBatch(metrics.BatchRejected, time.Since(start))
		return appErr
	}
	metrics.ObserveBatch(metrics.BatchApplied, time.Since(start))
	return nil
}

// ParsePeers turns id=addr entries into raft servers, skipping the entry
// for self.
func ParsePeers(peers []string, self string) ([]raft.Server, error) {
	var servers []raft.Server
	seen := map[string]bool{self: true}
	for _, peer := range peers {
		peer = strings.TrimSpace(peer)
		if peer == "" {
			continue
		}
		id, addr, ok := strings.Cut(peer, "=")
		id, addr = strings.TrimSpace(id), strings.TrimSpace(addr)
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid peer %q: want id=addr", peer)
		}
		if id == self {
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate peer id %q", id)
		}
		seen[id] = true
		servers = append(servers, raft.Server{
			ID:      raft.ServerID(id),
			Address: raft.ServerAddress(addr),
		})
	}
	return servers, nil
}

// WaitForLeader blocks until the cluster has a leader or ctx ends.
func (n *Node) WaitForLeader(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if n.LeaderAddress() != "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no leader elected: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// ID returns the local server id.
func (n *Node) ID() string {
	return n.config.NodeID
}

// Leader returns true if this node is the leader
func (n *Node) Leader() bool {
	return n.raft.State() == raft.Leader
}

// LeaderAddress returns the address of the current leader
func (n *Node) LeaderAddress() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

// State returns the current state of the Raft node
func (n *Node) State() raft.RaftState {
	return n.raft.State()
}

// Stats returns raft's internal counters.
func (n *Node) Stats() map[string]string {
	return n.raft.Stats()
}

// Join adds a voter to the cluster. Only the leader can do this.
func (n *Node) Join(nodeID, addr string) error {
	if !n.Leader() {
		return ErrNotLeader
	}
	cfgFuture := n.raft.GetConfiguration()
	if err := cfgFuture.Error(); err != nil {
		return err
	}
	for _, srv := range cfgFuture.Configuration().Servers {
		if srv.ID == raft.ServerID(nodeID) && srv.Address == raft.ServerAddress(addr) {
			return nil
		}
	}
	if err := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0).Error(); err != nil {
		return fmt.Errorf("failed to add node: %w", err)
	}
	log.WithFields(log.Fields{"node_id": nodeID, "addr": addr}).Info("node joined")
	return nil
}

// Remove drops a server from the cluster. Only the leader can do this.
func (n *Node) Remove(nodeID string) error {
	if !n.Leader() {
		return ErrNotLeader
	}
	if err := n.raft.RemoveServer(raft.ServerID(nodeID), 0, 0).Error(); err != nil {
		return fmt.Errorf("failed to remove node: %w", err)
	}
	log.WithField("node_id", nodeID).Info("node removed")
	return nil
}

// Shutdown stops the Raft node
func (n *Node) Shutdown() error {
	var err error
	if n.raft != nil {
		err = n.raft.Shutdown().Error()
	}
	if closer, ok := n.transport.(raft.WithClose); ok {
		_ = closer.Close()
	}
	n.closeStores()
	return err
}

func (n *Node) closeStores() {
	for _, c := range n.closers {
		_ = c.Close()
	}
	n.closers = nil
}
