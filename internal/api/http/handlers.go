package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ambience-chat/internal/chain"
	"github.com/GriffinCanCode/ambience-chat/internal/chat"
	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/notify"
	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
	"github.com/GriffinCanCode/ambience-chat/internal/txn"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

// Service version reported by Root
const Version = "0.1.0"

// Chat is the chat service, satisfied by *chat.Service
type Chat interface {
	ConnectionState() realtime.State
	SendMessage(ctx context.Context, roomID, content string) (chat.Sent, error)
	CreateRoom(ctx context.Context, in validation.RoomInput) (txn.Result, error)
	JoinRoom(ctx context.Context, roomID string) (txn.Result, error)
	LeaveRoom(ctx context.Context, roomID string) (txn.Result, error)
	UpdateRoomSettings(ctx context.Context, roomID string, in validation.RoomSettingsInput) (txn.Result, error)
	Messages(ctx context.Context, roomID string) ([]realtime.ChatMessage, error)
	History(ctx context.Context, q history.Query) (history.Page, error)
	Feed(roomID string) []realtime.ChatMessage
	Presence() []realtime.Presence
	KnownRooms() []realtime.RoomUpdate
	UpdateProfile(in validation.ProfileInput, avatar []byte) (chat.Profile, error)
	Profile() (chat.Profile, error)
}

// Transactions is the transaction coordinator, satisfied by *txn.Coordinator
type Transactions interface {
	State() txn.State
	ClearError()
	SwitchNetwork(ctx context.Context, chainID uint64) bool
}

// Toasts is the notification board, satisfied by *notify.Board
type Toasts interface {
	Active() []notify.Toast
	Get(toastID string) (notify.Toast, bool)
	Dismiss(toastID string)
}

// Networks reports the active and supported chains, satisfied by
// *chain.Client
type Networks interface {
	Network() chain.Network
	Networks() []chain.Network
}

// Handlers contains all HTTP handlers
type Handlers struct {
	chat       Chat
	txns       Transactions
	toasts     Toasts
	networks   Networks
	classifier txn.Classifier
	logger     *logging.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(chat Chat, txns Transactions, toasts Toasts, networks Networks, logger *logging.Logger) *Handlers {
	return &Handlers{
		chat:       chat,
		txns:       txns,
		toasts:     toasts,
		networks:   networks,
		classifier: txn.DefaultClassifier(),
		logger:     logger.Named("api"),
	}
}

// WithClassifier replaces the classifier used to map wallet errors
func (h *Handlers) WithClassifier(cl txn.Classifier) *Handlers {
	h.classifier = cl
	return h
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/state", h.State)
	r.POST("/state/clear", h.ClearState)

	r.GET("/network", h.Network)
	r.POST("/network/switch", h.SwitchNetwork)

	r.GET("/toasts", h.ListToasts)
	r.GET("/toasts/:id", h.GetToast)
	r.DELETE("/toasts/:id", h.DismissToast)

	r.GET("/presence", h.Presence)

	r.GET("/profile", h.Profile)
	r.PUT("/profile", h.UpdateProfile)

	r.GET("/rooms", h.ListRooms)
	r.POST("/rooms", h.CreateRoom)
	r.POST("/rooms/:id/join", h.JoinRoom)
	r.POST("/rooms/:id/leave", h.LeaveRoom)
	r.PUT("/rooms/:id/settings", h.UpdateRoomSettings)
	r.GET("/rooms/:id/messages", h.Messages)
	r.POST("/rooms/:id/messages", h.SendMessage)
	r.GET("/rooms/:id/feed", h.Feed)
	r.GET("/rooms/:id/history", h.History)
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ambience-chat",
		"version": Version,
	})
}

// Health reports the realtime connection, the active network and the
// transaction status
func (h *Handlers) Health(c *gin.Context) {
	state := h.chat.ConnectionState()
	network := h.networks.Network()

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"realtime": gin.H{
			"state":     state.String(),
			"connected": state == realtime.StateConnected,
		},
		"chain": gin.H{
			"connected": network.ChainID != 0,
			"network":   network.Name,
			"chain_id":  network.ChainID,
		},
		"transaction": h.txns.State().Status,
	})
}
