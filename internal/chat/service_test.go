package chat

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ambience-chat/internal/chain"
	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/notify"
	"github.com/GriffinCanCode/ambience-chat/internal/ratelimit"
	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
	"github.com/GriffinCanCode/ambience-chat/internal/txn"
	"github.com/GriffinCanCode/ambience-chat/internal/validation"
)

const senderHex = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

type harness struct {
	svc     *Service
	rt      *fakeRealtime
	rooms   *fakeRooms
	history *fakeHistory
	board   *notify.Board
	coord   *txn.Coordinator
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	logger := logging.NewNop()
	h := &harness{
		rt:      newFakeRealtime(),
		rooms:   &fakeRooms{sender: common.HexToAddress(senderHex)},
		history: &fakeHistory{},
		board:   notify.NewBoard(logger),
	}
	h.coord = txn.NewCoordinator(minedWaiter{}, h.board, logger)

	deps := Deps{
		Realtime:    h.rt,
		Rooms:       h.rooms,
		History:     h.history,
		Coordinator: h.coord,
		Notifier:    h.board,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.svc = NewService(deps, logger)
	h.svc.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	require.NoError(t, h.svc.Start(context.Background()))
	t.Cleanup(h.svc.Stop)
	return h
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, 4, h.rt.subscribers())
	assert.Equal(t, 1, h.rt.connects)

	require.NoError(t, h.svc.Start(context.Background()))
	assert.Equal(t, 4, h.rt.subscribers())

	h.svc.Stop()
	h.svc.Stop()
	assert.Zero(t, h.rt.subscribers())
	assert.Equal(t, 1, h.rt.disconnects)
	assert.Equal(t, realtime.StateConnected, h.svc.ConnectionState())
}

func TestStartReportsConnectFailure(t *testing.T) {
	rt := newFakeRealtime()
	rt.connectErr = errors.New("dial refused")
	svc := NewService(Deps{Realtime: rt, Rooms: &fakeRooms{}}, logging.NewNop())

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 4, rt.subscribers())
	svc.Stop()
}

func TestIncomingMessagesAreSanitizedAndFed(t *testing.T) {
	h := newHarness(t, nil)

	h.rt.emit(realtime.EventMessage, map[string]any{
		"id": "m1", "sender": "0xabc", "content": `<b>gm</b><script>alert(1)</script>`, "timestamp": 1, "roomId": "1",
	})
	h.rt.emit(realtime.EventMessage, map[string]any{"id": "m2", "sender": "0xabc", "content": "no room"})

	feed := h.svc.Feed("1")
	require.Len(t, feed, 1)
	assert.Equal(t, "<b>gm</b>", feed[0].Content)
	assert.Equal(t, "0xabc", feed[0].Sender.Address)

	// Edits replace, deletes remove
	h.rt.emit(realtime.EventMessage, map[string]any{"id": "m1", "sender": "0xabc", "content": "edited", "roomId": "1", "edited": true})
	feed = h.svc.Feed("1")
	require.Len(t, feed, 1)
	assert.Equal(t, "edited", feed[0].Content)
	assert.True(t, feed[0].Edited)

	h.rt.emit(realtime.EventMessage, map[string]any{"id": "m1", "sender": "0xabc", "content": "", "roomId": "1", "deleted": true})
	assert.Empty(t, h.svc.Feed("1"))

	h.rt.emit(realtime.EventMessage, "not an object")
	assert.Empty(t, h.svc.Feed("1"))
}

func TestFeedIsBounded(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.FeedSize = 3 })

	for _, msgID := range []string{"a", "b", "c", "d", "e"} {
		h.rt.emit(realtime.EventMessage, map[string]any{"id": msgID, "sender": "0xabc", "content": msgID, "roomId": "1"})
	}

	feed := h.svc.Feed("1")
	require.Len(t, feed, 3)
	assert.Equal(t, "c", feed[0].ID)
	assert.Equal(t, "e", feed[2].ID)

	// Feed returns a copy
	feed[0].Content = "changed"
	assert.Equal(t, "c", h.svc.Feed("1")[0].Content)
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t, nil)

	sent, err := h.svc.SendMessage(context.Background(), "7", `hi <img src=x onerror=alert(1)> <i>there</i>`)
	require.NoError(t, err)

	require.Len(t, h.rooms.calls, 1)
	call := h.rooms.calls[0]
	assert.Equal(t, "sendMessage", call.method)
	assert.Equal(t, uint64(7), call.roomID)
	assert.NotContains(t, call.content, "onerror")
	assert.Contains(t, call.content, "<i>there</i>")

	assert.True(t, sent.Broadcast)
	assert.Equal(t, "stored-1", sent.StoredID)
	assert.Equal(t, common.BigToHash(big.NewInt(1)).Hex(), sent.TxHash)
	assert.Equal(t, common.HexToAddress(senderHex).Hex(), sent.Message.Sender.Address)
	assert.Equal(t, int64(1_700_000_000_000), sent.Message.Timestamp)

	require.Len(t, h.rt.sent, 1)
	assert.Equal(t, realtime.EventMessage, h.rt.sent[0].kind)

	require.Len(t, h.history.stored, 1)
	assert.Equal(t, call.content, h.history.stored[0].Content)

	// The echo from the server does not duplicate the local copy
	h.rt.emit(realtime.EventMessage, sent.Message)
	assert.Len(t, h.svc.Feed("7"), 1)

	assert.Equal(t, txn.StatusSuccess, h.coord.State().Status)
	assert.Empty(t, h.board.Active())
}

func TestSendMessageRejections(t *testing.T) {
	t.Run("no wallet", func(t *testing.T) {
		h := newHarness(t, nil)
		h.rooms.noWallet = true
		_, err := h.svc.SendMessage(context.Background(), "1", "gm")
		assert.ErrorIs(t, err, txn.ErrNoWallet)
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.svc.SendMessage(context.Background(), "1", "")
		var fe validation.FieldErrors
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "content", fe[0].Field)
	})

	t.Run("bad room id", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.svc.SendMessage(context.Background(), "general", "gm")
		assert.ErrorIs(t, err, ErrInvalidRoomID)
	})

	t.Run("empty after sanitizing", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.svc.SendMessage(context.Background(), "1", "<script>alert(1)</script>")
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Zero(t, h.rooms.callCount())
	})

	t.Run("rate limited", func(t *testing.T) {
		h := newHarness(t, nil)
		for i := 0; i < 5; i++ {
			_, err := h.svc.SendMessage(context.Background(), "1", "gm")
			require.NoError(t, err)
		}
		_, err := h.svc.SendMessage(context.Background(), "1", "gm")
		assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
		assert.Equal(t, 5, h.rooms.callCount())
	})
}

func TestSendMessageSubmitFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.rooms.err = errRejected

	_, err := h.svc.SendMessage(context.Background(), "1", "gm")
	require.ErrorIs(t, err, errRejected)
	assert.Empty(t, h.rt.sent)
	assert.Empty(t, h.svc.Feed("1"))
	assert.Empty(t, h.history.stored)
	assert.Equal(t, txn.StatusError, h.coord.State().Status)

	// A rejection only dismisses the progress toast
	assert.Empty(t, h.board.Active())

	h.rooms.err = errors.New("insufficient funds for gas * price + value")
	_, err = h.svc.SendMessage(context.Background(), "1", "gm")
	require.Error(t, err)

	active := h.board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Failed to send message", active[0].Title)
	assert.Equal(t, notify.LevelError, active[0].Level)
}

func TestSendMessageNotBroadcast(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.History = nil })
	h.rt.sendOK = false

	sent, err := h.svc.SendMessage(context.Background(), "1", "gm")
	require.NoError(t, err)
	assert.False(t, sent.Broadcast)
	assert.Empty(t, sent.StoredID)
	assert.Len(t, h.svc.Feed("1"), 1)
}

func TestJoinAndLeaveRoom(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.svc.JoinRoom(context.Background(), "3")
	require.NoError(t, err)
	assert.True(t, res.Success)

	presence := h.svc.Presence()
	require.Len(t, presence, 1)
	assert.Equal(t, PresenceOnline, presence[0].Status)
	assert.Equal(t, "3", presence[0].RoomID)

	_, err = h.svc.LeaveRoom(context.Background(), "3")
	require.NoError(t, err)
	presence = h.svc.Presence()
	require.Len(t, presence, 1)
	assert.Equal(t, PresenceOffline, presence[0].Status)

	require.Len(t, h.rooms.calls, 2)
	assert.Equal(t, "joinRoom", h.rooms.calls[0].method)
	assert.Equal(t, "leaveRoom", h.rooms.calls[1].method)

	require.Len(t, h.rt.sent, 2)
	assert.Equal(t, realtime.EventPresence, h.rt.sent[0].kind)

	_, err = h.svc.JoinRoom(context.Background(), "-1")
	assert.ErrorIs(t, err, ErrInvalidRoomID)
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateRoom(context.Background(), validation.RoomInput{Name: "x"})
	var fe validation.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, h.rooms.callCount())

	res, err := h.svc.CreateRoom(context.Background(), validation.RoomInput{Name: "general"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "general", h.rooms.calls[0].name)

	active := h.board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Room created", active[0].Title)

	_, err = h.svc.CreateRoom(context.Background(), validation.RoomInput{Name: "random"})
	require.NoError(t, err)
	_, err = h.svc.CreateRoom(context.Background(), validation.RoomInput{Name: "third"})
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
}

func TestUpdateRoomSettings(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.UpdateRoomSettings(context.Background(), "4", validation.RoomSettingsInput{
		Name:        "general",
		Description: "All things & more",
		IsPrivate:   true,
	})
	require.NoError(t, err)

	require.Len(t, h.rooms.calls, 1)
	call := h.rooms.calls[0]
	assert.Equal(t, uint64(4), call.roomID)
	assert.Equal(t, "general", call.name)
	assert.True(t, call.private)
	assert.Equal(t, "All things &amp; more", call.desc)

	_, err = h.svc.UpdateRoomSettings(context.Background(), "4", validation.RoomSettingsInput{Name: "general", Description: "<b>x</b>"})
	var fe validation.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "description", fe[0].Field)
}

func TestMessagesFromChain(t *testing.T) {
	h := newHarness(t, nil)
	h.rooms.onchain = []chain.OnchainMessage{
		{Sender: common.HexToAddress(senderHex), Content: "gm<script>x</script>", Timestamp: big.NewInt(1_700_000_000)},
		{Sender: common.HexToAddress(senderHex), Content: "second"},
	}

	msgs, err := h.svc.Messages(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "gm", msgs[0].Content)
	assert.Equal(t, int64(1_700_000_000_000), msgs[0].Timestamp)
	assert.Equal(t, "2-1", msgs[1].ID)
	assert.Zero(t, msgs[1].Timestamp)
	assert.True(t, strings.EqualFold(senderHex, msgs[0].Sender.Address))
}

func TestHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.history.page = history.Page{Messages: []realtime.ChatMessage{{ID: "h1", RoomID: "1", Content: `<a href="javascript:x()">x</a>`}}}

	page, err := h.svc.History(context.Background(), history.Query{RoomID: "1"})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.NotContains(t, page.Messages[0].Content, "javascript")

	bare := newHarness(t, func(d *Deps) { d.History = nil })
	_, err = bare.svc.History(context.Background(), history.Query{RoomID: "1"})
	assert.ErrorIs(t, err, history.ErrNotConfigured)
}

func TestPresenceAndRoomEvents(t *testing.T) {
	h := newHarness(t, nil)

	h.rt.emit(realtime.EventPresence, realtime.Presence{Address: "0xBBB", Status: "typing", RoomID: "1"})
	h.rt.emit(realtime.EventPresence, realtime.Presence{Address: "0xaaa", Status: "online", LastSeen: 5})
	h.rt.emit(realtime.EventPresence, map[string]any{"status": "online"})

	presence := h.svc.Presence()
	require.Len(t, presence, 2)
	assert.Equal(t, "0xBBB", presence[0].Address)
	assert.Equal(t, int64(1_700_000_000_000), presence[0].LastSeen)
	assert.Equal(t, int64(5), presence[1].LastSeen)

	h.rt.emit(realtime.EventRoomUpdate, realtime.RoomUpdate{ID: "2", Name: "<b>random</b>", Topic: "memes"})
	h.rt.emit(realtime.EventRoomUpdate, realtime.RoomUpdate{ID: "1", Name: "general"})
	h.rt.emit(realtime.EventRoomUpdate, realtime.RoomUpdate{Name: "no id"})

	rooms := h.svc.KnownRooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "1", rooms[0].ID)
	assert.Equal(t, "random", rooms[1].Name)
}

func TestErrorEventRaisesStickyNotification(t *testing.T) {
	h := newHarness(t, nil)

	h.rt.emit(realtime.EventError, realtime.ErrorPayload{Message: realtime.ConnectionLostMessage})

	active := h.board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notify.LevelError, active[0].Level)
	assert.Equal(t, realtime.ConnectionLostMessage, active[0].Title)
	assert.Zero(t, active[0].Duration)
}

func TestParseRoomID(t *testing.T) {
	n, err := ParseRoomID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := ParseRoomID(bad)
		assert.ErrorIs(t, err, ErrInvalidRoomID, bad)
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.Profile()
	require.ErrorIs(t, err, ErrNoProfile)

	p, err := h.svc.UpdateProfile(validation.ProfileInput{
		Name: "alice_01",
		Bio:  "builder on celo",
	}, pngHeader)
	require.NoError(t, err)
	assert.Equal(t, senderHex, p.Address)
	assert.Equal(t, "builder on celo", p.Bio)
	assert.Equal(t, "image/png", p.AvatarType)
	assert.Equal(t, int64(1_700_000_000_000), p.UpdatedAt)

	stored, err := h.svc.Profile()
	require.NoError(t, err)
	assert.Equal(t, p, stored)
}

func TestUpdateProfileRejections(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.UpdateProfile(validation.ProfileInput{
		Address: "0x1111111111111111111111111111111111111111",
		Name:    "alice",
	}, nil)
	assert.ErrorIs(t, err, ErrProfileAddress)

	_, err = h.svc.UpdateProfile(validation.ProfileInput{Name: "a"}, nil)
	var fieldErrs validation.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Contains(t, fieldErrs.Fields(), "name")

	_, err = h.svc.UpdateProfile(validation.ProfileInput{Name: "alice"}, []byte("plain text"))
	assert.ErrorIs(t, err, validation.ErrAvatarType)

	_, err = h.svc.Profile()
	assert.ErrorIs(t, err, ErrNoProfile)

	h.rooms.noWallet = true
	_, err = h.svc.UpdateProfile(validation.ProfileInput{Name: "alice"}, nil)
	assert.ErrorIs(t, err, txn.ErrNoWallet)
}

func TestUpdateProfileIsRateLimited(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 3; i++ {
		_, err := h.svc.UpdateProfile(validation.ProfileInput{Name: "alice"}, nil)
		require.NoError(t, err)
	}
	_, err := h.svc.UpdateProfile(validation.ProfileInput{Name: "alice"}, nil)
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
}
