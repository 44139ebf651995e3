package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/txn"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

// ListRooms returns the rooms announced over the realtime connection
func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.chat.KnownRooms()})
}

// CreateRoom submits a new room
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req validation.RoomInput
	if !bind(c, &req) {
		return
	}
	res, err := h.chat.CreateRoom(detached(c), req)
	h.respondTx(c, res, err, http.StatusCreated)
}

// JoinRoom joins the room in the path
func (h *Handlers) JoinRoom(c *gin.Context) {
	res, err := h.chat.JoinRoom(detached(c), c.Param("id"))
	h.respondTx(c, res, err, http.StatusOK)
}

// LeaveRoom leaves the room in the path
func (h *Handlers) LeaveRoom(c *gin.Context) {
	res, err := h.chat.LeaveRoom(detached(c), c.Param("id"))
	h.respondTx(c, res, err, http.StatusOK)
}

// UpdateRoomSettings replaces the settings of the room in the path
func (h *Handlers) UpdateRoomSettings(c *gin.Context) {
	var req validation.RoomSettingsInput
	if !bind(c, &req) {
		return
	}
	res, err := h.chat.UpdateRoomSettings(detached(c), c.Param("id"), req)
	h.respondTx(c, res, err, http.StatusOK)
}

// Messages reads the room's messages from the contract
func (h *Handlers) Messages(c *gin.Context) {
	roomID := c.Param("id")
	messages, err := h.chat.Messages(c.Request.Context(), roomID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id":  roomID,
		"messages": messages,
	})
}

// SendMessage submits a message to the room in the path
func (h *Handlers) SendMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if !bind(c, &req) {
		return
	}

	sent, err := h.chat.SendMessage(detached(c), c.Param("id"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"sent":    sent,
	})
}

// Feed returns the realtime messages received for the room
func (h *Handlers) Feed(c *gin.Context) {
	roomID := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"room_id":  roomID,
		"messages": h.chat.Feed(roomID),
	})
}

// History returns a page of the room's stored messages
func (h *Handlers) History(c *gin.Context) {
	var req struct {
		Limit int `form:"limit"`
		Page  int `form:"page"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid query: " + err.Error(),
		})
		return
	}

	roomID := c.Param("id")
	page, err := h.chat.History(c.Request.Context(), history.Query{RoomID: roomID, Limit: req.Limit, Page: req.Page})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id":    roomID,
		"messages":   page.Messages,
		"pagination": page.Pagination,
	})
}

// detached keeps the request's values but not its cancellation. A submitted
// transaction is followed to the end even when the caller hangs up.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return false
	}
	return true
}

func (h *Handlers) respondTx(c *gin.Context, res txn.Result, err error, okStatus int) {
	if err != nil {
		h.respondError(c, err)
		return
	}

	body := gin.H{
		"success": true,
		"tx_hash": res.TxHash.Hex(),
	}
	if res.Receipt != nil {
		if res.Receipt.BlockNumber != nil {
			body["block_number"] = res.Receipt.BlockNumber.Uint64()
		}
		body["gas_used"] = res.Receipt.GasUsed
	}
	c.JSON(okStatus, body)
}
