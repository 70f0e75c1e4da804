package handlers

import (
	"net/http"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) serveProjects(c *gin.Context, rest []string) {
	switch {
	case len(rest) == 2 && rest[1] == "status":
		if c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodPut {
			methodNotAllowed(c)
			return
		}
		h.UpdateProjectStatus(c, rest[0])
	case len(rest) > 1:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		switch c.Request.Method {
		case http.MethodGet:
			if len(rest) == 1 {
				h.GetProject(c, rest[0])
				return
			}
			h.GetProjects(c)
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			h.SaveProject(c, rest)
		case http.MethodDelete:
			h.DeleteProject(c, rest)
		default:
			methodNotAllowed(c)
		}
	}
}

// GetProjects returns the caller's budgets, newest first
func (h *Handler) GetProjects(c *gin.Context) {
	projects, err := h.Store.Projects.List(c.Request.Context(), owner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetProject returns one budget
func (h *Handler) GetProject(c *gin.Context, id string) {
	p, err := h.Store.Projects.Get(c.Request.Context(), owner(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SaveProject creates or updates a budget
func (h *Handler) SaveProject(c *gin.Context, rest []string) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return
	}
	patch, err := models.NormalizeProject(body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(rest) == 1 {
		id := rest[0]
		patch.ID = &id
	}

	p, err := h.Store.Projects.Save(c.Request.Context(), owner(c), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProjectStatus moves a budget along its lifecycle
func (h *Handler) UpdateProjectStatus(c *gin.Context, id string) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return
	}
	status, err := models.NormalizeStatus(body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	p, err := h.Store.Projects.UpdateStatus(c.Request.Context(), owner(c), id, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProject removes one budget, or all of them with ?all=true
func (h *Handler) DeleteProject(c *gin.Context, rest []string) {
	ctx := c.Request.Context()
	if id := targetID(c, rest); id != "" {
		if err := h.Store.Projects.Delete(ctx, owner(c), id); err != nil {
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
	if err := h.Store.Projects.DeleteAll(ctx, owner(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
