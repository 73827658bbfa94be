// Package id provides ULID-based identifiers for the ability manager.
//
// Identifiers are prefixed by kind so they read well in logs:
//   - msn_*: mission grouping of ability records
//   - evt_*: lifecycle events published to observers
//   - req_*: inbound API requests
//
// Ability tokens are not generated here; they are u16 values issued by the
// lifecycle controller.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MissionID groups ability records started for one user task
type MissionID string

// EventID identifies a lifecycle event
type EventID string

// RequestID identifies an API request
type RequestID string

const (
	MissionPrefix = "msn"
	EventPrefix   = "evt"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewMissionID generates a new mission ID
func NewMissionID() MissionID {
	return MissionID(Default().GenerateWithPrefix(MissionPrefix))
}

// NewEventID generates a new event ID
func NewEventID() EventID {
	return EventID(Default().GenerateWithPrefix(EventPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id MissionID) String() string { return string(id) }
func (id EventID) String() string   { return string(id) }
func (id RequestID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a known prefix if present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
