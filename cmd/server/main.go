package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devadigapratham/printlog/api"
	"github.com/devadigapratham/printlog/auth"
	"github.com/devadigapratham/printlog/config"
	"github.com/devadigapratham/printlog/logging"
	"github.com/devadigapratham/printlog/raft"
	"github.com/devadigapratham/printlog/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	cfg := config.ParseFlags()

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.RaftDir != "" {
		if err := os.MkdirAll(cfg.RaftDir, 0755); err != nil {
			log.Fatalf("Failed to create Raft directory: %v", err)
		}
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	schema := store.NewSchema(db)
	if err := schema.Ensure(context.Background()); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	// Create Raft node
	node, err := raft.NewNode(&raft.Config{
		NodeID:        cfg.NodeID,
		RaftAddr:      cfg.RaftAddr,
		RaftDir:       cfg.RaftDir,
		Bootstrap:     cfg.Bootstrap,
		Peers:         cfg.Peers,
		ClusterSecret: cfg.ClusterSecret,
	}, db)
	if err != nil {
		log.Fatalf("Failed to create Raft node: %v", err)
	}

	archive, err := store.NewArchive(cfg.ArchiveDir)
	if err != nil {
		log.Fatalf("Failed to create purge archive: %v", err)
	}
	st := store.New(db, node, store.WithArchive(archive))

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.RedisAddr != "" {
		redisRevoker := auth.NewRedisRevoker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisRevoker.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("redis unreachable, session checks will fail until it answers")
		}
		cancel()
		defer redisRevoker.Close()
		revoker = redisRevoker
	}
	verifier, err := auth.NewJWTVerifier(cfg.SessionSecret, cfg.SessionIssuer, revoker)
	if err != nil {
		log.Fatalf("Failed to create session verifier: %v", err)
	}

	// Setup HTTP router
	router := api.SetupRouter(api.Options{
		Store:      st,
		Schema:     schema,
		Verifier:   verifier,
		Revoker:    revoker,
		Node:       node,
		CookieName: cfg.SessionCookie,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Join the cluster if needed
	if cfg.JoinAddr != "" {
		log.Infof("Joining cluster at %s", cfg.JoinAddr)
		joinCtx, cancel := context.WithTimeout(ctx, time.Minute)
		if err := raft.JoinCluster(joinCtx, cfg.JoinAddr, cfg.ClusterSecret, cfg.NodeID, cfg.RaftAddr); err != nil {
			log.WithError(err).Error("Failed to join cluster")
		}
		cancel()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := node.WaitForLeader(waitCtx); err != nil {
			log.WithError(err).Warn("no leader yet, writes will be rejected until one is elected")
		}
		cancel()
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	// Shutdown Raft node
	if err := node.Shutdown(); err != nil {
		log.WithError(err).Error("Error shutting down Raft node")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("Shutdown complete")
}
