// Package id provides ID generation for the chat client.
//
// Two formats are used:
//   - Prefixed ULIDs for locally generated, sortable identifiers
//     (toast_*, tx_*, req_*). Prefixes make log lines readable.
//   - UUIDv4 for client message IDs attached to outgoing realtime frames,
//     matching what the realtime server echoes back.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ToastID identifies a notification
type ToastID string

// TxID identifies one transaction flow started by the coordinator
type TxID string

// RequestID identifies a control API request
type RequestID string

// ClientMessageID identifies an outgoing chat message before it is persisted
type ClientMessageID string

const (
	ToastPrefix   = "toast"
	TxPrefix      = "tx"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate())
}

// NewToastID generates a new notification ID
func NewToastID() ToastID {
	return ToastID(Default().GenerateWithPrefix(ToastPrefix))
}

// NewTxID generates a new transaction flow ID
func NewTxID() TxID {
	return TxID(Default().GenerateWithPrefix(TxPrefix))
}

// NewRequestID generates a new control API request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewClientMessageID generates a random UUID for an outgoing message
func NewClientMessageID() ClientMessageID {
	return ClientMessageID(uuid.NewString())
}

func (id ToastID) String() string         { return string(id) }
func (id TxID) String() string            { return string(id) }
func (id RequestID) String() string       { return string(id) }
func (id ClientMessageID) String() string { return string(id) }

// IsValidPrefixed checks that id is prefix_<ulid>
func IsValidPrefixed(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
