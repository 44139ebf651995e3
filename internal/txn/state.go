package txn

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Status of the most recent transaction flow
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPreparing Status = "preparing"
	StatusWaiting   Status = "waiting"
	StatusMining    Status = "mining"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// State is the shared view of the most recent transaction flow
type State struct {
	Status  Status
	Err     error
	Receipt *types.Receipt
	TxHash  *common.Hash
}

// View is the JSON form of State
type View struct {
	Status        Status  `json:"status"`
	Error         string  `json:"error,omitempty"`
	TxHash        string  `json:"txHash,omitempty"`
	BlockNumber   uint64  `json:"blockNumber,omitempty"`
	GasUsed       uint64  `json:"gasUsed,omitempty"`
	ReceiptStatus *uint64 `json:"receiptStatus,omitempty"`
}

// View flattens s for display
func (s State) View() View {
	v := View{Status: s.Status}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	if s.TxHash != nil {
		v.TxHash = s.TxHash.Hex()
	}
	if s.Receipt != nil {
		if s.Receipt.BlockNumber != nil {
			v.BlockNumber = s.Receipt.BlockNumber.Uint64()
		}
		v.GasUsed = s.Receipt.GasUsed
		status := s.Receipt.Status
		v.ReceiptStatus = &status
	}
	return v
}

// Store holds State and notifies watchers on every change. Concurrent
// writers are not serialized beyond the mutex: the last write wins.
type Store struct {
	mu       sync.RWMutex
	state    State
	watchers map[uint64]func(State)
	next     uint64

	notifyMu sync.Mutex
}

// NewStore returns a store in the idle state
func NewStore() *Store {
	return &Store{
		state:    State{Status: StatusIdle},
		watchers: make(map[uint64]func(State)),
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the state
func (s *Store) Set(state State) {
	s.Update(func(State) State { return state })
}

// Update applies fn to the current state. Watchers run after the write,
// in order, and must not call Set or Update.
func (s *Store) Update(fn func(State) State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state = fn(s.state)
	state := s.state
	watchers := make([]func(State), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(state)
	}
}

// Watch registers fn for every subsequent change
func (s *Store) Watch(fn func(State)) (cancel func()) {
	s.mu.Lock()
	s.next++
	id := s.next
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}
