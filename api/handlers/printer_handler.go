package handlers

import (
	"net/http"

	"github.com/devadigapratham/printlog/api/models"
	"github.com/gin-gonic/gin"
)

func (h *Handler) servePrinters(c *gin.Context, rest []string) {
	switch {
	case len(rest) == 2 && rest[1] == "status":
		if c.Request.Method != http.MethodPatch && c.Request.Method != http.MethodPut {
			methodNotAllowed(c)
			return
		}
		h.UpdatePrinterStatus(c, rest[0])
	case len(rest) == 2 && rest[1] == "maintenance":
		if c.Request.Method != http.MethodPost {
			methodNotAllowed(c)
			return
		}
		h.ResetPrinterMaintenance(c, rest[0])
	case len(rest) > 1:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		switch c.Request.Method {
		case http.MethodGet:
			if len(rest) == 1 {
				h.GetPrinter(c, rest[0])
				return
			}
			h.GetPrinters(c)
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			h.SavePrinter(c, rest)
		case http.MethodDelete:
			h.DeletePrinter(c, rest)
		default:
			methodNotAllowed(c)
		}
	}
}

// GetPrinters returns all printers of the caller
func (h *Handler) GetPrinters(c *gin.Context) {
	printers, err := h.Store.Printers.List(c.Request.Context(), owner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, printers)
}

// GetPrinter returns one printer
func (h *Handler) GetPrinter(c *gin.Context, id string) {
	p, err := h.Store.Printers.Get(c.Request.Context(), owner(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SavePrinter creates or updates a printer
func (h *Handler) SavePrinter(c *gin.Context, rest []string) {
	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, err)
		return
	}
	patch, err := models.NormalizePrinter(body)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(rest) == 1 {
		id := rest[0]
		patch.ID = &id
	}

	p, err := h.Store.Printers.Save(c.Request.Context(), owner(c), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePrinterStatus sets idle, printing, maintenance or offline
func (h *Handler) UpdatePrinterStatus(c *gin.Context, id string) {
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
	p, err := h.Store.Printers.UpdateStatus(c.Request.Context(), owner(c), id, status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ResetPrinterMaintenance records a maintenance at the current hour count
func (h *Handler) ResetPrinterMaintenance(c *gin.Context, id string) {
	p, err := h.Store.Printers.ResetMaintenance(c.Request.Context(), owner(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePrinter removes one printer, or all of them with ?all=true
func (h *Handler) DeletePrinter(c *gin.Context, rest []string) {
	ctx := c.Request.Context()
	if id := targetID(c, rest); id != "" {
		if err := h.Store.Printers.Delete(ctx, owner(c), id); err != nil {
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
	if err := h.Store.Printers.DeleteAll(ctx, owner(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
