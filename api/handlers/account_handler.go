package handlers

import (
	"net/http"
	"time"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) serveApproval(c *gin.Context, rest []string) {
	if len(rest) > 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if c.Request.Method != http.MethodPost {
		methodNotAllowed(c)
		return
	}
	h.ApproveBudget(c)
}

// ApproveBudget approves a project and books its printer time and
// filament usage in one batch
func (h *Handler) ApproveBudget(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return
	}
	req, err := models.NormalizeApproval(body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.Store.Budgets.Approve(c.Request.Context(), owner(c), req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) serveUsers(c *gin.Context, rest []string) {
	switch {
	case len(rest) == 2 && rest[1] == "backup":
		if c.Request.Method != http.MethodGet {
			methodNotAllowed(c)
			return
		}
		h.BackupAccount(c, rest[0])
	case len(rest) == 2 && rest[1] == "purges":
		if c.Request.Method != http.MethodGet {
			methodNotAllowed(c)
			return
		}
		h.ListPurges(c, rest[0])
	case len(rest) == 3 && rest[1] == "purges":
		switch c.Request.Method {
		case http.MethodGet:
			h.GetPurgeArchive(c, rest[0], rest[2])
		case http.MethodDelete:
			h.DiscardPurgeArchive(c, rest[0], rest[2])
		default:
			methodNotAllowed(c)
		}
	case len(rest) == 0:
		if c.Request.Method != http.MethodDelete {
			methodNotAllowed(c)
			return
		}
		h.PurgeAccount(c)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	}
}

// self reports whether the account segment names the caller, answering 404
// otherwise.
func self(c *gin.Context, id string) bool {
	if id == "me" || id == owner(c) {
		return true
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	return false
}

// BackupAccount exports everything the caller owns. Only the caller's own
// account (or "me") can be exported.
func (h *Handler) BackupAccount(c *gin.Context, id string) {
	if !self(c, id) {
		return
	}
	backup, err := h.Store.Accounts.Backup(c.Request.Context(), owner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, backup)
}

// PurgeAccount deletes every row the caller owns
func (h *Handler) PurgeAccount(c *gin.Context) {
	protocol, err := h.Store.Accounts.Purge(c.Request.Context(), owner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "protocol": protocol})
}

// ListPurges lists the exports kept from the caller's purges
func (h *Handler) ListPurges(c *gin.Context, id string) {
	if !self(c, id) {
		return
	}
	records, err := h.Store.Accounts.Purges(c.Request.Context(), owner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetPurgeArchive returns the export kept by one of the caller's purges
func (h *Handler) GetPurgeArchive(c *gin.Context, id, protocol string) {
	if !self(c, id) {
		return
	}
	backup, err := h.Store.Accounts.Archived(owner(c), protocol)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, backup)
}

// DiscardPurgeArchive deletes the export kept by one of the caller's purges
func (h *Handler) DiscardPurgeArchive(c *gin.Context, id, protocol string) {
	if !self(c, id) {
		return
	}
	if err := h.Store.Accounts.DiscardArchived(owner(c), protocol); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) serveSession(c *gin.Context, rest []string) {
	if len(rest) != 1 || rest[0] != "logout" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if c.Request.Method != http.MethodPost {
		methodNotAllowed(c)
		return
	}
	h.Logout(c)
}

// Logout revokes the current session token for as long as the verifier
// would still accept it
func (h *Handler) Logout(c *gin.Context) {
	id := identity(c)
	if h.Revoker != nil && id.Token != "" {
		ttl := time.Until(id.ValidUntil)
		if err := h.Revoker.Revoke(c.Request.Context(), id.Token, ttl); err != nil {
			h.respondError(c, err)
			return
		}
		log.WithField("user_id", id.UserID).Info("session revoked")
	}
	c.Status(http.StatusNoContent)
}
