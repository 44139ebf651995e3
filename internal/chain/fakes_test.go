package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend implements the calls Client and bind use; anything else
// panics through the nil embedded interface
type fakeBackend struct {
	bind.ContractBackend

	mu          sync.Mutex
	chainID     *big.Int
	head        uint64
	advance     bool
	missing     int
	receipt     *types.Receipt
	receiptErr  error
	receiptHits int
	code        []byte
	callResult  []byte
	sent        []*types.Transaction
	closed      bool
}

func newFakeBackend(chainID uint64) *fakeBackend {
	return &fakeBackend{chainID: new(big.Int).SetUint64(chainID), code: []byte{0x60}}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advance {
		f.head++
	}
	return f.head, nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptHits++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.missing > 0 {
		f.missing--
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeBackend) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(f.head)}, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return f.code, nil
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return f.code, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callResult, nil
}

// fakeDialer hands out one backend per chain id and counts dials
type fakeDialer struct {
	mu       sync.Mutex
	backends map[string]*fakeBackend
	dials    int
}

func (d *fakeDialer) Dial(_ context.Context, rpcURL string) (Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	return d.backends[rpcURL], nil
}
