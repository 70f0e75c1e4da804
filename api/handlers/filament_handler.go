package handlers

import (
	"net/http"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) serveFilaments(c *gin.Context, rest []string) {
	switch {
	case len(rest) == 2 && rest[1] == "weight":
		if c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodPut {
			methodNotAllowed(c)
			return
		}
		h.UpdateFilamentWeight(c, rest[0])
	case len(rest) > 1:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		switch c.Request.Method {
		case http.MethodGet:
			if len(rest) == 1 {
				h.GetFilament(c, rest[0])
				return
			}
			h.GetFilaments(c)
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			h.SaveFilament(c, rest)
		case http.MethodDelete:
			h.DeleteFilament(c, rest)
		default:
			methodNotAllowed(c)
		}
	}
}

// GetFilaments returns all filaments of the caller
func (h *Handler) GetFilaments(c *gin.Context) {
	filaments, err := h.Store.Filaments.List(c.Request.Context(), owner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, filaments)
}

// GetFilament returns one filament
func (h *Handler) GetFilament(c *gin.Context, id string) {
	f, err := h.Store.Filaments.Get(c.Request.Context(), owner(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// SaveFilament creates or updates a filament
func (h *Handler) SaveFilament(c *gin.Context, rest []string) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return
	}
	patch, err := models.NormalizeFilament(body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(rest) == 1 {
		id := rest[0]
		patch.ID = &id
	}

	f, err := h.Store.Filaments.Save(c.Request.Context(), owner(c), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// UpdateFilamentWeight sets the remaining grams of a spool
func (h *Handler) UpdateFilamentWeight(c *gin.Context, id string) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return
	}
	weight, err := models.NormalizeWeight(body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	f, err := h.Store.Filaments.UpdateWeight(c.Request.Context(), owner(c), id, weight)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// DeleteFilament removes one filament, or all of them with ?all=true
func (h *Handler) DeleteFilament(c *gin.Context, rest []string) {
	ctx := c.Request.Context()
	if id := targetID(c, rest); id != "" {
		if err := h.Store.Filaments.Delete(ctx, owner(c), id); err != nil {
			h.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	if !bulkRequested(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id"})
		return
	}
	if err := h.Store.Filaments.DeleteAll(ctx, owner(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
