// Package chat is the client-side chat service.
//
// Service composes the realtime connection, the transaction coordinator and
// the chat contract. Writes are validated, rate limited and sanitized before
// they are submitted on chain; incoming realtime events are sanitized and
// kept in bounded per-room feeds, a presence table and a room table.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/chain"
	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/ratelimit"
	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
	"github.com/GriffinCanCode/ambience-chat/internal/sanitize"
	"github.com/GriffinCanCode/ambience-chat/internal/shared/id"
	"github.com/GriffinCanCode/ambience-chat/internal/txn"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

var (
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrEmptyMessage  = errors.New("message is empty after sanitization")
)

// DefaultFeedSize is how many messages each room feed keeps
const DefaultFeedSize = 200

// Presence statuses
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Realtime is the subset of *realtime.Manager the service uses
type Realtime interface {
	Connect(ctx context.Context) error
	Disconnect()
	State() realtime.State
	On(kind realtime.EventKind, fn realtime.Handler) func()
	Send(kind realtime.EventKind, payload any) bool
}

// Rooms is the chat contract facade, satisfied by *chain.Rooms
type Rooms interface {
	Sender() (common.Address, bool)
	CreateRoom(ctx context.Context, name string) (common.Hash, error)
	JoinRoom(ctx context.Context, roomID uint64) (common.Hash, error)
	LeaveRoom(ctx context.Context, roomID uint64) (common.Hash, error)
	UpdateRoomSettings(ctx context.Context, roomID uint64, name, description string, isPrivate bool) (common.Hash, error)
	SendMessage(ctx context.Context, roomID uint64, content string) (common.Hash, error)
	Messages(ctx context.Context, roomID uint64) ([]chain.OnchainMessage, error)
}

// History is the history API, satisfied by *history.Client
type History interface {
	Messages(ctx context.Context, q history.Query) (history.Page, error)
	Send(ctx context.Context, body history.SendRequest) (string, error)
}

// Executor runs transaction flows, satisfied by *txn.Coordinator
type Executor interface {
	Execute(ctx context.Context, submit txn.SubmitFunc, opts ...txn.Option) txn.Result
}

// Deps are the collaborators of a Service. History may be nil.
type Deps struct {
	Realtime    Realtime
	Rooms       Rooms
	History     History
	Coordinator Executor
	Notifier    txn.Notifier
	Limiter     *ratelimit.Limiter
	Validator   *validation.Validator
	Sanitizer   *sanitize.Sanitizer
	FeedSize    int
}

// Sent is the outcome of SendMessage
type Sent struct {
	Message   realtime.ChatMessage `json:"message"`
	TxHash    string               `json:"txHash"`
	Broadcast bool                 `json:"broadcast"`
	StoredID  string               `json:"storedId,omitempty"`
}

// Service is the chat client. It is safe for concurrent use.
type Service struct {
	rt        Realtime
	rooms     Rooms
	history   History
	exec      Executor
	notifier  txn.Notifier
	limiter   *ratelimit.Limiter
	validator *validation.Validator
	sanitizer *sanitize.Sanitizer
	feedSize  int
	logger    *logging.Logger
	now       func() time.Time

	mu        sync.RWMutex
	feeds     map[string][]realtime.ChatMessage
	presence  map[string]realtime.Presence
	roomTable map[string]realtime.RoomUpdate
	profile   *Profile
	unsubs    []func()
	started   bool
}

// NewService creates a stopped service
func NewService(deps Deps, logger *logging.Logger) *Service {
	if deps.Notifier == nil {
		deps.Notifier = txn.NopNotifier{}
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New(nil)
	}
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.New(sanitize.DefaultMaxLength)
	}
	if deps.FeedSize <= 0 {
		deps.FeedSize = DefaultFeedSize
	}

	return &Service{
		rt:        deps.Realtime,
		rooms:     deps.Rooms,
		history:   deps.History,
		exec:      deps.Coordinator,
		notifier:  deps.Notifier,
		limiter:   deps.Limiter,
		validator: deps.Validator,
		sanitizer: deps.Sanitizer,
		feedSize:  deps.FeedSize,
		logger:    logger.Named("chat"),
		now:       time.Now,
		feeds:     make(map[string][]realtime.ChatMessage),
		presence:  make(map[string]realtime.Presence),
		roomTable: make(map[string]realtime.RoomUpdate),
	}
}

// Start subscribes to realtime events and connects. A failed first
// connection is returned but the service stays started: the connection
// manager keeps retrying.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.unsubs = []func(){
		s.rt.On(realtime.EventMessage, s.onMessage),
		s.rt.On(realtime.EventPresence, s.onPresence),
		s.rt.On(realtime.EventRoomUpdate, s.onRoomUpdate),
		s.rt.On(realtime.EventError, s.onError),
	}
	s.mu.Unlock()

	if err := s.rt.Connect(ctx); err != nil {
		s.logger.Warn("Initial realtime connection failed", zap.Error(err))
		return err
	}
	s.logger.Info("Chat service started")
	return nil
}

// Stop unsubscribes and disconnects
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	unsubs := s.unsubs
	s.unsubs = nil
	s.started = false
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.rt.Disconnect()
	s.logger.Info("Chat service stopped")
}

// ConnectionState reports the realtime connection state
func (s *Service) ConnectionState() realtime.State {
	return s.rt.State()
}

func (s *Service) sender() (common.Address, error) {
	addr, ok := s.rooms.Sender()
	if !ok {
		return common.Address{}, txn.ErrNoWallet
	}
	return addr, nil
}

// ParseRoomID converts a wire room id to the contract's numeric id
func ParseRoomID(roomID string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(roomID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRoomID, roomID)
	}
	return n, nil
}

// SendMessage validates, sanitizes and submits content to roomID, then
// broadcasts it and stores it in the history API when one is configured
func (s *Service) SendMessage(ctx context.Context, roomID, content string) (Sent, error) {
	sender, err := s.sender()
	if err != nil {
		return Sent{}, err
	}
	if err := s.validator.Struct(validation.MessageInput{RoomID: roomID, Content: content, Sender: sender.Hex()}); err != nil {
		return Sent{}, err
	}
	room, err := ParseRoomID(roomID)
	if err != nil {
		return Sent{}, err
	}
	if err := s.limiter.Check(ratelimit.ActionMessage, sender.Hex()); err != nil {
		return Sent{}, err
	}

	clean := s.sanitizer.Message(content)
	if strings.TrimSpace(s.sanitizer.StripAll(clean)) == "" {
		return Sent{}, ErrEmptyMessage
	}

	res := s.exec.Execute(ctx, func(ctx context.Context) (common.Hash, error) {
		return s.rooms.SendMessage(ctx, room, clean)
	},
		txn.WithPending("Sending message..."),
		txn.WithSuccess(""),
		txn.WithError("Failed to send message"),
	)
	if !res.Success {
		return Sent{}, res.Err
	}

	msg := realtime.ChatMessage{
		ID:        res.TxHash.Hex(),
		ClientID:  id.NewClientMessageID().String(),
		Sender:    realtime.Sender{Member: realtime.Member{Address: sender.Hex()}},
		Content:   clean,
		Timestamp: s.now().UnixMilli(),
		RoomID:    roomID,
	}
	out := Sent{Message: msg, TxHash: res.TxHash.Hex()}

	s.appendMessage(msg)
	out.Broadcast = s.rt.Send(realtime.EventMessage, msg)
	if !out.Broadcast {
		s.logger.Warn("Message confirmed but not broadcast", zap.String("room", roomID), zap.String("tx", out.TxHash))
	}

	if s.history != nil {
		storedID, err := s.history.Send(ctx, history.SendRequest{RoomID: roomID, Content: clean, Sender: sender.Hex()})
		if err != nil {
			s.logger.Warn("Failed to store message in history", zap.String("room", roomID), zap.Error(err))
		} else {
			out.StoredID = storedID
		}
	}
	return out, nil
}

// CreateRoom submits a new room
func (s *Service) CreateRoom(ctx context.Context, in validation.RoomInput) (txn.Result, error) {
	sender, err := s.sender()
	if err != nil {
		return txn.Result{Err: err}, err
	}
	if err := s.validator.Struct(in); err != nil {
		return txn.Result{Err: err}, err
	}
	if err := s.limiter.Check(ratelimit.ActionRoom, sender.Hex()); err != nil {
		return txn.Result{Err: err}, err
	}

	return s.execute(ctx, func(ctx context.Context) (common.Hash, error) {
		return s.rooms.CreateRoom(ctx, in.Name)
	},
		txn.WithPending("Creating room..."),
		txn.WithSuccess("Room created"),
		txn.WithError("Failed to create room"),
	)
}

// JoinRoom submits membership and announces presence on success
func (s *Service) JoinRoom(ctx context.Context, roomID string) (txn.Result, error) {
	return s.membership(ctx, roomID, PresenceOnline)
}

// LeaveRoom submits leaving and announces presence on success
func (s *Service) LeaveRoom(ctx context.Context, roomID string) (txn.Result, error) {
	return s.membership(ctx, roomID, PresenceOffline)
}

func (s *Service) membership(ctx context.Context, roomID, status string) (txn.Result, error) {
	sender, err := s.sender()
	if err != nil {
		return txn.Result{Err: err}, err
	}
	room, err := ParseRoomID(roomID)
	if err != nil {
		return txn.Result{Err: err}, err
	}
	if err := s.limiter.Check(ratelimit.ActionContract, sender.Hex()); err != nil {
		return txn.Result{Err: err}, err
	}

	submit := func(ctx context.Context) (common.Hash, error) { return s.rooms.JoinRoom(ctx, room) }
	opts := []txn.Option{txn.WithPending("Joining room..."), txn.WithSuccess("Joined room"), txn.WithError("Failed to join room")}
	if status == PresenceOffline {
		submit = func(ctx context.Context) (common.Hash, error) { return s.rooms.LeaveRoom(ctx, room) }
		opts = []txn.Option{txn.WithPending("Leaving room..."), txn.WithSuccess("Left room"), txn.WithError("Failed to leave room")}
	}

	res, err := s.execute(ctx, submit, opts...)
	if err != nil {
		return res, err
	}

	p := realtime.Presence{
		Address:  sender.Hex(),
		RoomID:   roomID,
		Status:   status,
		LastSeen: s.now().UnixMilli(),
	}
	s.setPresence(p)
	s.rt.Send(realtime.EventPresence, p)
	return res, nil
}

// UpdateRoomSettings submits new settings for roomID
func (s *Service) UpdateRoomSettings(ctx context.Context, roomID string, in validation.RoomSettingsInput) (txn.Result, error) {
	sender, err := s.sender()
	if err != nil {
		return txn.Result{Err: err}, err
	}
	if err := s.validator.Struct(in); err != nil {
		return txn.Result{Err: err}, err
	}
	room, err := ParseRoomID(roomID)
	if err != nil {
		return txn.Result{Err: err}, err
	}
	if err := s.limiter.Check(ratelimit.ActionContract, sender.Hex()); err != nil {
		return txn.Result{Err: err}, err
	}

	description := s.sanitizer.StripAll(in.Description)
	return s.execute(ctx, func(ctx context.Context) (common.Hash, error) {
		return s.rooms.UpdateRoomSettings(ctx, room, in.Name, description, in.IsPrivate)
	},
		txn.WithPending("Updating room settings..."),
		txn.WithSuccess("Room settings updated successfully"),
		txn.WithError("Failed to update room settings"),
	)
}

func (s *Service) execute(ctx context.Context, submit txn.SubmitFunc, opts ...txn.Option) (txn.Result, error) {
	res := s.exec.Execute(ctx, submit, opts...)
	if !res.Success {
		return res, res.Err
	}
	return res, nil
}

// Messages reads roomID's messages from the contract, sanitized, oldest
// first
func (s *Service) Messages(ctx context.Context, roomID string) ([]realtime.ChatMessage, error) {
	room, err := ParseRoomID(roomID)
	if err != nil {
		return nil, err
	}
	onchain, err := s.rooms.Messages(ctx, room)
	if err != nil {
		return nil, err
	}

	out := make([]realtime.ChatMessage, 0, len(onchain))
	for i, m := range onchain {
		var ts int64
		if m.Timestamp != nil && m.Timestamp.IsInt64() {
			ts = m.Timestamp.Int64() * 1000
		}
		out = append(out, realtime.ChatMessage{
			ID:        fmt.Sprintf("%s-%d", roomID, i),
			Sender:    realtime.Sender{Member: realtime.Member{Address: m.Sender.Hex()}},
			Content:   s.sanitizer.Message(m.Content),
			Timestamp: ts,
			RoomID:    roomID,
		})
	}
	return out, nil
}

// History fetches a page from the history API, sanitized
func (s *Service) History(ctx context.Context, q history.Query) (history.Page, error) {
	if s.history == nil {
		return history.Page{}, history.ErrNotConfigured
	}
	page, err := s.history.Messages(ctx, q)
	if err != nil {
		return history.Page{}, err
	}
	for i := range page.Messages {
		page.Messages[i].Content = s.sanitizer.Message(page.Messages[i].Content)
	}
	return page, nil
}

// Feed returns the realtime messages received for roomID, oldest first
func (s *Service) Feed(roomID string) []realtime.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]realtime.ChatMessage{}, s.feeds[roomID]...)
}

// Presence returns the known presence of every address, sorted by address
func (s *Service) Presence() []realtime.Presence {
	s.mu.RLock()
	out := make([]realtime.Presence, 0, len(s.presence))
	for _, p := range s.presence {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// KnownRooms returns the rooms announced over realtime, sorted by id
func (s *Service) KnownRooms() []realtime.RoomUpdate {
	s.mu.RLock()
	out := make([]realtime.RoomUpdate, 0, len(s.roomTable))
	for _, r := range s.roomTable {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
