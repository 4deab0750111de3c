// Package id provides ULID-based identifier generation for the preview service.
//
// Intent records and preview slots carry prefixed ULIDs (intent_*, slot_*) so
// the event log stays lexicographically ordered by emission time and IDs are
// recognizable in logs.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IntentID identifies an outbound intent record.
type IntentID string

// SlotID identifies a preview slot (one rendered surface).
type SlotID string

const (
	intentPrefix = "intent"
	slotPrefix   = "slot"
)

// Generator produces ULIDs from a guarded entropy source.
type Generator struct {
	entropy io.Reader
	mu      sync.Mutex
}

var (
	defaultGen *Generator
	once       sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGen = NewGenerator(rand.Reader)
	})
	return defaultGen
}

// NewGenerator creates a generator backed by the given entropy source.
// Pass a deterministic reader in tests.
func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewIntentID generates an intent record ID.
func NewIntentID() IntentID {
	return IntentID(Default().GenerateWithPrefix(intentPrefix))
}

// NewSlotID generates a preview slot ID.
func NewSlotID() SlotID {
	return SlotID(Default().GenerateWithPrefix(slotPrefix))
}

func (id IntentID) String() string { return string(id) }
func (id SlotID) String() string   { return string(id) }

// IsValid reports whether s is a bare ULID.
func IsValid(s string) bool {
	_, err := ulid.Parse(s)
	return err == nil
}
