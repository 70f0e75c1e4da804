// api/router.go
package api

import (
	"net/http"

	"github.com/devadigapratham/printlog/api/handlers"
	"github.com/devadigapratham/printlog/api/metrics"
	"github.com/devadigapratham/printlog/auth"
	"github.com/devadigapratham/printlog/raft"
	"github.com/devadigapratham/printlog/store"
	"github.com/gin-gonic/gin"
)

// Options wires the router to its collaborators. Node may be nil when the
// store writes through a local applier.
type Options struct {
	Store      *store.Store
	Schema     *store.Schema
	Verifier   auth.Verifier
	Revoker    auth.Revoker
	Node       *raft.Node
	CookieName string
}

// SetupRouter sets up the API routes
func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(requestID(), requestLog(), recovery(), cors(), metrics.Middleware())

	var cluster handlers.Cluster
	if opts.Node != nil {
		cluster = opts.Node
	}
	handler := handlers.NewHandler(opts.Store, cluster, opts.Revoker)

	api := router.Group("/api")
	api.Use(
		handler.AuthMiddleware(opts.Verifier, opts.CookieName),
		handler.SchemaMiddleware(opts.Schema),
		handler.RaftLeaderMiddleware(),
	)
	api.Any("/*path", handler.Dispatch)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	// Add a raft status endpoint
	router.GET("/status", func(c *gin.Context) {
		if opts.Node == nil {
			c.JSON(http.StatusOK, gin.H{"mode": "standalone", "is_leader": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"node_id":     opts.Node.ID(),
			"is_leader":   opts.Node.Leader(),
			"leader_addr": opts.Node.LeaderAddress(),
			"state":       opts.Node.State().String(),
			"stats":       opts.Node.Stats(),
		})
	})
	if opts.Node != nil {
		opts.Node.RegisterRoutes(router.Group("/raft"))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
