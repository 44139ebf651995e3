package chat

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/GriffinCanCode/ambience-chat/internal/chain"
	"github.com/GriffinCanCode/ambience-chat/internal/history"
	"github.com/GriffinCanCode/ambience-chat/internal/realtime"
)

type sentFrame struct {
	kind    realtime.EventKind
	payload any
}

type fakeRealtime struct {
	mu          sync.Mutex
	handlers    map[realtime.EventKind]map[int]realtime.Handler
	next        int
	sent        []sentFrame
	sendOK      bool
	connectErr  error
	connects    int
	disconnects int
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{handlers: make(map[realtime.EventKind]map[int]realtime.Handler), sendOK: true}
}

func (f *fakeRealtime) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeRealtime) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeRealtime) State() realtime.State {
	return realtime.StateConnected
}

func (f *fakeRealtime) On(kind realtime.EventKind, fn realtime.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers[kind] == nil {
		f.handlers[kind] = make(map[int]realtime.Handler)
	}
	f.next++
	n := f.next
	f.handlers[kind][n] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[kind], n)
	}
}

func (f *fakeRealtime) Send(kind realtime.EventKind, payload any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentFrame{kind: kind, payload: payload})
	return f.sendOK
}

func (f *fakeRealtime) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hs := range f.handlers {
		n += len(hs)
	}
	return n
}

// emit delivers payload to subscribers of kind as a server frame would
func (f *fakeRealtime) emit(kind realtime.EventKind, payload any) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	hs := make([]realtime.Handler, 0, len(f.handlers[kind]))
	for _, h := range f.handlers[kind] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

type roomCall struct {
	method  string
	roomID  uint64
	name    string
	content string
	desc    string
	private bool
}

type fakeRooms struct {
	mu       sync.Mutex
	sender   common.Address
	noWallet bool
	err      error
	calls    []roomCall
	onchain  []chain.OnchainMessage
	nonce    int64
}

func (f *fakeRooms) Sender() (common.Address, bool) {
	return f.sender, !f.noWallet
}

func (f *fakeRooms) record(c roomCall) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.err != nil {
		return common.Hash{}, f.err
	}
	f.nonce++
	return common.BigToHash(big.NewInt(f.nonce)), nil
}

func (f *fakeRooms) CreateRoom(_ context.Context, name string) (common.Hash, error) {
	return f.record(roomCall{method: "createRoom", name: name})
}

func (f *fakeRooms) JoinRoom(_ context.Context, roomID uint64) (common.Hash, error) {
	return f.record(roomCall{method: "joinRoom", roomID: roomID})
}

func (f *fakeRooms) LeaveRoom(_ context.Context, roomID uint64) (common.Hash, error) {
	return f.record(roomCall{method: "leaveRoom", roomID: roomID})
}

func (f *fakeRooms) UpdateRoomSettings(_ context.Context, roomID uint64, name, description string, isPrivate bool) (common.Hash, error) {
	return f.record(roomCall{method: "updateRoomSettings", roomID: roomID, name: name, desc: description, private: isPrivate})
}

func (f *fakeRooms) SendMessage(_ context.Context, roomID uint64, content string) (common.Hash, error) {
	return f.record(roomCall{method: "sendMessage", roomID: roomID, content: content})
}

func (f *fakeRooms) Messages(context.Context, uint64) ([]chain.OnchainMessage, error) {
	return f.onchain, f.err
}

func (f *fakeRooms) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeHistory struct {
	page    history.Page
	stored  []history.SendRequest
	sendErr error
}

func (f *fakeHistory) Messages(context.Context, history.Query) (history.Page, error) {
	return f.page, nil
}

func (f *fakeHistory) Send(_ context.Context, body history.SendRequest) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.stored = append(f.stored, body)
	return "stored-1", nil
}

type minedWaiter struct{}

func (minedWaiter) WaitMined(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil
}

func (minedWaiter) WaitConfirmations(context.Context, *types.Receipt, uint64) error {
	return nil
}

var errRejected = errors.New("User rejected the request.")
