package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/resilience"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrChainMismatch    = errors.New("rpc endpoint reports a different chain")
	ErrNotConnected     = errors.New("chain client is not connected")
	ErrNoContract       = errors.New("chat contract is not deployed on this network")
	ErrNoBlockNumber    = errors.New("receipt has no block number")
)

// Defaults for Options
const (
	DefaultPollInterval = 2 * time.Second
	DefaultDialTimeout  = 15 * time.Second

	// maxPollFailures is how many consecutive RPC errors a wait tolerates
	maxPollFailures = 3
)

// Options configures a Client
type Options struct {
	PollInterval time.Duration
	DialTimeout  time.Duration
	Dialer       Dialer
}

// Client holds the backend of the active network
type Client struct {
	networks map[uint64]Network
	order    []Network

	mu       sync.RWMutex
	active   Network
	backend  Backend
	contract *Contract

	dial    Dialer
	poll    time.Duration
	timeout time.Duration
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// NewClient creates a disconnected client for networks. Call SwitchChain
// to connect.
func NewClient(networks []Network, opts Options, logger *logging.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = DialEthclient
	}

	byID := make(map[uint64]Network, len(networks))
	for _, n := range networks {
		byID[n.ChainID] = n
	}

	settings := resilience.ForRemote(logger)
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ethereum.NotFound) || errors.Is(err, context.Canceled)
	}

	return &Client{
		networks: byID,
		order:    append([]Network(nil), networks...),
		dial:     opts.Dialer,
		poll:     opts.PollInterval,
		timeout:  opts.DialTimeout,
		breaker:  resilience.New("chain-rpc", settings),
		logger:   logger.Named("chain"),
	}
}

// WithMetrics attaches a metrics collector
func (c *Client) WithMetrics(m *monitoring.Metrics) *Client {
	c.metrics = m
	return c
}

// Networks returns the supported networks in configuration order
func (c *Client) Networks() []Network {
	return append([]Network(nil), c.order...)
}

// Network returns the active network; the zero Network when disconnected
func (c *Client) Network() Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// ChainID returns the active chain id, or 0 when disconnected
func (c *Client) ChainID() uint64 {
	return c.Network().ChainID
}

// Breaker exposes the RPC circuit breaker state
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// SwitchChain connects to chainID, replacing the current backend. The new
// endpoint must report the expected chain id.
func (c *Client) SwitchChain(ctx context.Context, chainID uint64) error {
	network, ok := c.networks[chainID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}

	c.mu.RLock()
	same := c.backend != nil && c.active.ChainID == chainID
	c.mu.RUnlock()
	if same {
		return nil
	}

	backend, err := c.connect(ctx, network)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.backend
	c.backend = backend
	c.active = network
	c.contract = nil
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	c.logger.Info("Connected to network",
		zap.String("network", network.Name),
		zap.Uint64("chain_id", network.ChainID),
	)
	return nil
}

func (c *Client) connect(ctx context.Context, network Network) (Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	timer := monitoring.NewTimer(c.metrics, "dial")
	backend, err := c.dial(ctx, network.RPCURL)
	timer.Stop(err)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", network.Name, err)
	}

	remote, err := call(c, "eth_chainId", func() (*big.Int, error) {
		return backend.ChainID(ctx)
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to query chain id of %s: %w", network.Name, err)
	}
	if !remote.IsUint64() || remote.Uint64() != network.ChainID {
		backend.Close()
		return nil, fmt.Errorf("%w: %s expected %d, got %s", ErrChainMismatch, network.Name, network.ChainID, remote)
	}
	return backend, nil
}

func (c *Client) current() (Backend, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.backend == nil {
		return nil, ErrNotConnected
	}
	return c.backend, nil
}

// call runs one RPC through the breaker and records its duration
func call[T any](c *Client, method string, fn func() (T, error)) (T, error) {
	timer := monitoring.NewTimer(c.metrics, method)
	v, err := resilience.Do(c.breaker, fn)
	if errors.Is(err, ethereum.NotFound) {
		timer.Stop(nil)
	} else {
		timer.Stop(err)
	}
	return v, err
}

// WaitMined polls until hash has a receipt. Missing receipts are retried
// until ctx is done; other RPC errors are tolerated a few times in a row.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	log := c.logger.With(zap.String("tx", hash.Hex()))
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	failures := 0
	for {
		backend, err := c.current()
		if err != nil {
			return nil, err
		}

		receipt, err := call(c, "eth_getTransactionReceipt", func() (*types.Receipt, error) {
			return backend.TransactionReceipt(ctx, hash)
		})
		switch {
		case err == nil:
			return receipt, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, ethereum.NotFound):
			failures = 0
		default:
			failures++
			if failures >= maxPollFailures {
				return nil, fmt.Errorf("failed to fetch receipt for %s: %w", hash.Hex(), err)
			}
			log.Warn("Receipt poll failed", zap.Int("failures", failures), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitConfirmations blocks until receipt is buried under n confirmations.
// The block containing the transaction counts as the first.
func (c *Client) WaitConfirmations(ctx context.Context, receipt *types.Receipt, n uint64) error {
	if receipt == nil || receipt.BlockNumber == nil {
		return ErrNoBlockNumber
	}
	if n <= 1 {
		return nil
	}
	target := receipt.BlockNumber.Uint64() + n - 1

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	failures := 0
	for {
		backend, err := c.current()
		if err != nil {
			return err
		}

		head, err := call(c, "eth_blockNumber", func() (uint64, error) {
			return backend.BlockNumber(ctx)
		})
		switch {
		case err == nil:
			failures = 0
			if head >= target {
				return nil
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failures++
			if failures >= maxPollFailures {
				return fmt.Errorf("failed to fetch block number: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Contract returns the chat contract binding of the active network
func (c *Client) Contract() (*Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.backend == nil {
		return nil, ErrNotConnected
	}
	if c.contract != nil {
		return c.contract, nil
	}
	if c.active.ChatContract == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, c.active.Name)
	}

	contract, err := NewContract(c.active.ChatContract, c.backend)
	if err != nil {
		return nil, err
	}
	c.contract = contract
	return contract, nil
}

// Close releases the backend
func (c *Client) Close() {
	c.mu.Lock()
	backend := c.backend
	c.backend = nil
	c.contract = nil
	c.active = Network{}
	c.mu.Unlock()

	if backend != nil {
		backend.Close()
	}
}
