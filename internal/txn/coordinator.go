package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ambience-chat/internal/shared/id"
)

var (
	ErrNoWallet   = errors.New("no wallet client available")
	ErrNoProvider = errors.New("no public client available")
	ErrReverted   = errors.New("transaction reverted")
)

// Notification texts for network switching
const (
	SwitchCancelledMessage  = "Network switch was cancelled"
	SwitchFailedMessage     = "Failed to switch network"
	SwitchFailedDescription = "Please try again or switch manually in your wallet"
)

// SubmitFunc sends a transaction and returns its hash
type SubmitFunc func(ctx context.Context) (common.Hash, error)

// ReceiptWaiter waits for a submitted transaction to be mined and buried
type ReceiptWaiter interface {
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	WaitConfirmations(ctx context.Context, receipt *types.Receipt, n uint64) error
}

// ChainSource reports the chain the client is connected to, 0 when none
type ChainSource interface {
	ChainID() uint64
}

// NetworkSwitcher is the wallet's chain switching capability
type NetworkSwitcher interface {
	ChainSource
	SwitchChain(ctx context.Context, chainID uint64) error
}

// Result is the outcome of Execute. Data aliases Receipt.
type Result struct {
	Success bool
	TxHash  common.Hash
	Receipt *types.Receipt
	Data    any
	Err     error
}

// Coordinator runs transaction flows against one shared Store
type Coordinator struct {
	waiter     ReceiptWaiter
	chain      ChainSource
	switcher   NetworkSwitcher
	notifier   Notifier
	classifier Classifier
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	store      *Store
}

// NewCoordinator creates a coordinator. A nil notifier discards
// notifications.
func NewCoordinator(waiter ReceiptWaiter, notifier Notifier, logger *logging.Logger) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Coordinator{
		waiter:     waiter,
		notifier:   notifier,
		classifier: DefaultClassifier(),
		logger:     logger.Named("txn"),
		store:      NewStore(),
	}
}

// WithChain attaches the source of the active chain id. It is used
// without a wallet too, so read-only clients still see they are on the
// requested chain.
func (c *Coordinator) WithChain(src ChainSource) *Coordinator {
	c.chain = src
	return c
}

// WithSwitcher attaches the wallet's network switcher
func (c *Coordinator) WithSwitcher(s NetworkSwitcher) *Coordinator {
	c.switcher = s
	return c
}

// WithClassifier replaces the error classification policy
func (c *Coordinator) WithClassifier(cl Classifier) *Coordinator {
	c.classifier = cl
	return c
}

// WithMetrics attaches a metrics collector
func (c *Coordinator) WithMetrics(m *monitoring.Metrics) *Coordinator {
	c.metrics = m
	return c
}

// State returns a snapshot of the shared state
func (c *Coordinator) State() State {
	return c.store.Snapshot()
}

// Store returns the shared state for watchers
func (c *Coordinator) Store() *Store {
	return c.store
}

// flow carries the per-call values through Execute
type flow struct {
	opts    Options
	toastID string
	hash    *common.Hash
	start   time.Time
	log     *logging.Logger
}

// Execute submits a transaction and waits for it to be confirmed, keeping
// the shared state and the notifier in step. A panicking submit is
// reported as a failed Result.
func (c *Coordinator) Execute(ctx context.Context, submit SubmitFunc, opts ...Option) Result {
	f := &flow{
		opts:  resolve(opts),
		start: time.Now(),
		log:   &logging.Logger{Logger: c.logger.With(zap.String("flow", id.NewTxID().String()))},
	}

	c.store.Set(State{Status: StatusPreparing})
	if f.opts.ShowToast {
		f.toastID = c.notifier.Loading(f.opts.Pending)
	}

	hash, err := c.submit(ctx, submit)
	if err != nil {
		return c.fail(f, err)
	}
	f.hash = &hash
	f.log.Info("Transaction submitted", zap.String("hash", hash.Hex()))
	c.update(f, func(s State) State {
		s.Status = StatusWaiting
		s.TxHash = &hash
		return s
	})

	if c.waiter == nil {
		return c.fail(f, ErrNoProvider)
	}

	receipt, err := c.waiter.WaitMined(ctx, hash)
	if err != nil {
		return c.fail(f, fmt.Errorf("wait for receipt: %w", err))
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return c.fail(f, fmt.Errorf("%w in block %v", ErrReverted, receipt.BlockNumber))
	}
	c.update(f, func(s State) State {
		s.Status = StatusMining
		return s
	})

	if err := c.waiter.WaitConfirmations(ctx, receipt, f.opts.Confirmations); err != nil {
		return c.fail(f, fmt.Errorf("wait for confirmations: %w", err))
	}

	if f.opts.ShowLoading {
		c.store.Set(State{
			Status:  StatusSuccess,
			Receipt: receipt,
			TxHash:  &hash,
		})
	}

	if f.opts.ShowToast {
		if msg := f.opts.Success(receipt); msg != "" {
			c.notifier.Success(f.toastID, msg)
		} else if f.toastID != "" {
			c.notifier.Dismiss(f.toastID)
		}
	}

	if f.opts.OnSuccess != nil {
		c.callback(f, "onSuccess", func() { f.opts.OnSuccess(receipt) })
	}

	f.log.Info("Transaction confirmed",
		zap.String("hash", hash.Hex()),
		zap.Uint64("confirmations", f.opts.Confirmations),
		zap.Duration("elapsed", time.Since(f.start)),
	)
	c.metrics.RecordTx(monitoring.StatusSuccess, "", time.Since(f.start))

	return Result{
		Success: true,
		TxHash:  hash,
		Receipt: receipt,
		Data:    receipt,
	}
}

func (c *Coordinator) submit(ctx context.Context, submit SubmitFunc) (hash common.Hash, err error) {
	if submit == nil {
		return hash, errors.New("no submit function")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submit panicked: %v", r)
		}
	}()
	return submit(ctx)
}

func (c *Coordinator) update(f *flow, fn func(State) State) {
	if f.opts.ShowLoading {
		c.store.Update(fn)
	}
}

func (c *Coordinator) fail(f *flow, err error) Result {
	class := c.classifier.Classify(err)
	description := c.classifier.Describe(err)

	f.log.Error("Transaction error", zap.Error(err), zap.Stringer("class", class))

	c.update(f, func(s State) State {
		s.Status = StatusError
		s.Err = err
		return s
	})

	if f.opts.ShowToast {
		if class != ClassUserRejected {
			duration := DefaultErrorDuration
			if class.Extended() {
				duration = ExtendedErrorDuration
			}
			c.notifier.Error(f.toastID, f.opts.Error(err), description, duration)
		} else if f.toastID != "" {
			c.notifier.Dismiss(f.toastID)
		}
	}

	if f.opts.OnError != nil {
		c.callback(f, "onError", func() { f.opts.OnError(err) })
	}

	c.metrics.RecordTx(monitoring.StatusError, class.String(), time.Since(f.start))

	res := Result{Err: err}
	if f.hash != nil {
		res.TxHash = *f.hash
	}
	return res
}

// callback runs a caller hook, logging instead of propagating a panic
func (c *Coordinator) callback(f *flow, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("Transaction callback panicked", zap.String("callback", name), zap.Any("panic", r))
		}
	}()
	fn()
}

// SwitchNetwork moves the wallet to chainID. It reports true when the
// wallet is already there or the switch succeeded.
func (c *Coordinator) SwitchNetwork(ctx context.Context, chainID uint64) bool {
	if active, ok := c.activeChain(); ok && active == chainID {
		return true
	}

	err := c.switchChain(ctx, chainID)
	if err == nil {
		c.logger.Info("Switched network", zap.Uint64("chain_id", chainID))
		c.metrics.RecordNetworkSwitch("switched")
		return true
	}

	c.logger.Error("Failed to switch network", zap.Uint64("chain_id", chainID), zap.Error(err))
	if c.classifier.Classify(err) == ClassUserRejected {
		c.notifier.Error("", SwitchCancelledMessage, "", DefaultErrorDuration)
		c.metrics.RecordNetworkSwitch("cancelled")
	} else {
		c.notifier.Error("", SwitchFailedMessage, SwitchFailedDescription, DefaultErrorDuration)
		c.metrics.RecordNetworkSwitch("failed")
	}
	return false
}

func (c *Coordinator) activeChain() (uint64, bool) {
	switch {
	case c.chain != nil:
		return c.chain.ChainID(), true
	case c.switcher != nil:
		return c.switcher.ChainID(), true
	}
	return 0, false
}

func (c *Coordinator) switchChain(ctx context.Context, chainID uint64) (err error) {
	if c.switcher == nil {
		return ErrNoWallet
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("switch chain panicked: %v", r)
		}
	}()
	return c.switcher.SwitchChain(ctx, chainID)
}

// ClearError returns the shared state to idle, keeping receipt and hash
func (c *Coordinator) ClearError() {
	c.store.Update(func(s State) State {
		s.Err = nil
		s.Status = StatusIdle
		return s
	})
}
