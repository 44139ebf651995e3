package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChatABI is the interface of the Messaging contract
const ChatABI = `[
	{"type":"function","name":"getMessages","stateMutability":"view",
	 "inputs":[{"name":"roomId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"sender","type":"address"},
		{"name":"content","type":"string"},
		{"name":"timestamp","type":"uint256"}]}]},
	{"type":"function","name":"createRoom","stateMutability":"nonpayable",
	 "inputs":[{"name":"name","type":"string"}],"outputs":[]},
	{"type":"function","name":"joinRoom","stateMutability":"nonpayable",
	 "inputs":[{"name":"roomId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"leaveRoom","stateMutability":"nonpayable",
	 "inputs":[{"name":"roomId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"updateRoomSettings","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"roomId","type":"uint256"},
		{"name":"name","type":"string"},
		{"name":"description","type":"string"},
		{"name":"isPrivate","type":"bool"}],"outputs":[]},
	{"type":"function","name":"sendMessage","stateMutability":"nonpayable",
	 "inputs":[{"name":"roomId","type":"uint256"},{"name":"content","type":"string"}],"outputs":[]}
]`

var parseChatABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(ChatABI))
})

// OnchainMessage is one message stored by the contract
type OnchainMessage struct {
	Sender    common.Address
	Content   string
	Timestamp *big.Int
}

// Contract is a binding of the chat contract at one address
type Contract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

// NewContract binds the chat contract at address
func NewContract(address common.Address, backend bind.ContractBackend) (*Contract, error) {
	parsed, err := parseChatABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse chat ABI: %w", err)
	}
	return &Contract{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

// Address returns the deployment address
func (c *Contract) Address() common.Address {
	return c.address
}

// GetMessages reads the messages of roomID
func (c *Contract) GetMessages(ctx context.Context, roomID uint64) ([]OnchainMessage, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getMessages", new(big.Int).SetUint64(roomID)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	msgs := *abi.ConvertType(out[0], new([]OnchainMessage)).(*[]OnchainMessage)
	return msgs, nil
}

// CreateRoom submits createRoom(name)
func (c *Contract) CreateRoom(opts *bind.TransactOpts, name string) (*types.Transaction, error) {
	return c.bound.Transact(opts, "createRoom", name)
}

// JoinRoom submits joinRoom(roomId)
func (c *Contract) JoinRoom(opts *bind.TransactOpts, roomID uint64) (*types.Transaction, error) {
	return c.bound.Transact(opts, "joinRoom", new(big.Int).SetUint64(roomID))
}

// LeaveRoom submits leaveRoom(roomId)
func (c *Contract) LeaveRoom(opts *bind.TransactOpts, roomID uint64) (*types.Transaction, error) {
	return c.bound.Transact(opts, "leaveRoom", new(big.Int).SetUint64(roomID))
}

// UpdateRoomSettings submits updateRoomSettings(roomId, name, description, isPrivate)
func (c *Contract) UpdateRoomSettings(opts *bind.TransactOpts, roomID uint64, name, description string, isPrivate bool) (*types.Transaction, error) {
	return c.bound.Transact(opts, "updateRoomSettings", new(big.Int).SetUint64(roomID), name, description, isPrivate)
}

// SendMessage submits sendMessage(roomId, content)
func (c *Contract) SendMessage(opts *bind.TransactOpts, roomID uint64, content string) (*types.Transaction, error) {
	return c.bound.Transact(opts, "sendMessage", new(big.Int).SetUint64(roomID), content)
}
