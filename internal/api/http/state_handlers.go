package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

// State returns the shared transaction state
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.txns.State().View())
}

// ClearState returns the transaction state to idle
func (h *Handlers) ClearState(c *gin.Context) {
	h.txns.ClearError()
	c.JSON(http.StatusOK, h.txns.State().View())
}

// Network lists the active network and the supported ones
func (h *Handlers) Network(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":    h.networks.Network(),
		"supported": h.networks.Networks(),
	})
}

// SwitchNetwork moves the wallet to another chain
func (h *Handlers) SwitchNetwork(c *gin.Context) {
	var req struct {
		ChainID uint64 `json:"chainId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return
	}

	if !h.txns.SwitchNetwork(c.Request.Context(), req.ChainID) {
		c.JSON(http.StatusBadGateway, gin.H{
			"success":  false,
			"error":    "failed to switch network",
			"chain_id": req.ChainID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"network": h.networks.Network(),
	})
}

// ListToasts returns the visible notifications, oldest first
func (h *Handlers) ListToasts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"toasts": h.toasts.Active()})
}

// GetToast returns one notification while it is visible
func (h *Handlers) GetToast(c *gin.Context) {
	toast, ok := h.toasts.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "toast not found",
		})
		return
	}
	c.JSON(http.StatusOK, toast)
}

// DismissToast removes one notification
func (h *Handlers) DismissToast(c *gin.Context) {
	h.toasts.Dismiss(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// Presence returns the known presence of every address
func (h *Handlers) Presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presence": h.chat.Presence()})
}

// Profile returns the wallet owner's profile
func (h *Handlers) Profile(c *gin.Context) {
	profile, err := h.chat.Profile()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile replaces the wallet owner's profile. The avatar is sent as
// base64 in the JSON body.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req struct {
		validation.ProfileInput
		Avatar []byte `json:"avatar,omitempty"`
	}
	if !bind(c, &req) {
		return
	}

	profile, err := h.chat.UpdateProfile(req.ProfileInput, req.Avatar)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
