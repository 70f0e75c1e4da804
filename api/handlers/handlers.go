package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/devadigapratham/printlog/auth"
	"github.com/devadigapratham/printlog/raft"
	"github.com/devadigapratham/printlog/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Canonical entity names
const (
	EntityFilaments     = "filaments"
	EntityPrinters      = "printers"
	EntityProjects      = "projects"
	EntityApproveBudget = "approve-budget"
	EntityUsers         = "users"
	EntitySession       = "session"
)

// synonyms maps every accepted first path segment to its entity.
var synonyms = map[string]string{
	"filaments":         EntityFilaments,
	"filamentos":        EntityFilaments,
	"printers":          EntityPrinters,
	"impressoras":       EntityPrinters,
	"projects":          EntityProjects,
	"projetos":          EntityProjects,
	"budgets":           EntityProjects,
	"orcamentos":        EntityProjects,
	"approve-budget":    EntityApproveBudget,
	"aprovar-orcamento": EntityApproveBudget,
	"users":             EntityUsers,
	"usuarios":          EntityUsers,
	"account":           EntityUsers,
	"conta":             EntityUsers,
	"session":           EntitySession,
}

const identityKey = "printlog.identity"

// Cluster reports leadership of the local replica.
type Cluster interface {
	Leader() bool
	LeaderAddress() string
}

// Handler represents the API handlers
type Handler struct {
	Store   *store.Store
	Cluster Cluster
	Revoker auth.Revoker
}

// NewHandler creates a new Handler. cluster and revoker may be nil.
func NewHandler(s *store.Store, cluster Cluster, revoker auth.Revoker) *Handler {
	return &Handler{
		Store:   s,
		Cluster: cluster,
		Revoker: revoker,
	}
}

// Resolve splits an /api sub-path into the canonical entity and the
// remaining segments. Unknown selectors resolve to "".
func Resolve(path string) (string, []string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	entity := synonyms[strings.ToLower(parts[0])]
	rest := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
		rest = append(rest, p)
	}
	return entity, rest
}

// Dispatch routes an /api request to the entity handler.
func (h *Handler) Dispatch(c *gin.Context) {
	entity, rest := Resolve(c.Param("path"))
	switch entity {
	case EntityFilaments:
		h.serveFilaments(c, rest)
	case EntityPrinters:
		h.servePrinters(c, rest)
	case EntityProjects:
		h.serveProjects(c, rest)
	case EntityApproveBudget:
		h.serveApproval(c, rest)
	case EntityUsers:
		h.serveUsers(c, rest)
	case EntitySession:
		h.serveSession(c, rest)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown entity"})
	}
}

// AuthMiddleware rejects requests without a valid session and stores the
// caller identity on the context.
func (h *Handler) AuthMiddleware(verifier auth.Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request, cookieName)
		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidSession) {
				log.WithError(err).Warn("session verification failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidSession.Error()})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// SchemaMiddleware makes sure every table exists before the handler runs.
func (h *Handler) SchemaMiddleware(schema *store.Schema) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := schema.Ensure(c.Request.Context()); err != nil {
			log.WithError(err).Error("schema initialization failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// RaftLeaderMiddleware rejects writes on followers. Session requests never
// touch the replicated log and always pass.
func (h *Handler) RaftLeaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to write operations
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead && h.Cluster != nil {
			entity, _ := Resolve(c.Param("path"))
			if entity != "" && entity != EntitySession && !h.Cluster.Leader() {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error":  "not the leader",
					"leader": h.Cluster.LeaderAddress(),
				})
				return
			}
		}
		c.Next()
	}
}

// identity returns the caller set by AuthMiddleware.
func identity(c *gin.Context) *auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*auth.Identity); ok {
			return id
		}
	}
	return &auth.Identity{}
}

func owner(c *gin.Context) string {
	return identity(c).UserID
}

// targetID returns the id from the path, falling back to ?id=.
func targetID(c *gin.Context, rest []string) string {
	if len(rest) > 0 {
		return rest[0]
	}
	return strings.TrimSpace(c.Query("id"))
}

func bulkRequested(c *gin.Context) bool {
	v := strings.ToLower(strings.TrimSpace(c.Query("all")))
	return v == "true" || v == "1"
}

func methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
}

// respondError maps store, auth and replication errors onto status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidSession.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, models.ErrInvalidPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, raft.ErrNotLeader):
		leader := ""
		if h.Cluster != nil {
			leader = h.Cluster.LeaderAddress()
		}
		c.JSON(http.StatusConflict, gin.H{"error": "not the leader", "leader": leader})
	default:
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
