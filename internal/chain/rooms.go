package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/GriffinCanCode/ambience-chat/internal/txn"
)

// Rooms submits chat contract calls signed by the wallet on the client's
// active network. Writes return the transaction hash without waiting.
type Rooms struct {
	client *Client
	wallet *Wallet
}

// NewRooms creates the facade. A nil wallet makes every write fail with
// txn.ErrNoWallet.
func NewRooms(client *Client, wallet *Wallet) *Rooms {
	return &Rooms{client: client, wallet: wallet}
}

// Sender returns the wallet address, if any
func (r *Rooms) Sender() (common.Address, bool) {
	if r.wallet == nil {
		return common.Address{}, false
	}
	return r.wallet.Address(), true
}

type writeFunc func(*Contract, *bind.TransactOpts) (*types.Transaction, error)

func (r *Rooms) transact(ctx context.Context, write writeFunc) (common.Hash, error) {
	if r.wallet == nil {
		return common.Hash{}, txn.ErrNoWallet
	}
	contract, err := r.client.Contract()
	if err != nil {
		return common.Hash{}, err
	}
	opts, err := r.wallet.TransactOpts(ctx, r.client.ChainID())
	if err != nil {
		return common.Hash{}, err
	}
	tx, err := write(contract, opts)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// CreateRoom submits a new room
func (r *Rooms) CreateRoom(ctx context.Context, name string) (common.Hash, error) {
	return r.transact(ctx, func(c *Contract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.CreateRoom(opts, name)
	})
}

// JoinRoom submits membership of roomID
func (r *Rooms) JoinRoom(ctx context.Context, roomID uint64) (common.Hash, error) {
	return r.transact(ctx, func(c *Contract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.JoinRoom(opts, roomID)
	})
}

// LeaveRoom submits leaving roomID
func (r *Rooms) LeaveRoom(ctx context.Context, roomID uint64) (common.Hash, error) {
	return r.transact(ctx, func(c *Contract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.LeaveRoom(opts, roomID)
	})
}

// UpdateRoomSettings submits new room settings
func (r *Rooms) UpdateRoomSettings(ctx context.Context, roomID uint64, name, description string, isPrivate bool) (common.Hash, error) {
	return r.transact(ctx, func(c *Contract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.UpdateRoomSettings(opts, roomID, name, description, isPrivate)
	})
}

// SendMessage submits a message to roomID
func (r *Rooms) SendMessage(ctx context.Context, roomID uint64, content string) (common.Hash, error) {
	return r.transact(ctx, func(c *Contract, opts *bind.TransactOpts) (*types.Transaction, error) {
		return c.SendMessage(opts, roomID, content)
	})
}

// Messages reads the on-chain messages of roomID
func (r *Rooms) Messages(ctx context.Context, roomID uint64) ([]OnchainMessage, error) {
	contract, err := r.client.Contract()
	if err != nil {
		return nil, err
	}
	return contract.GetMessages(ctx, roomID)
}
