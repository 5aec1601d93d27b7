package tool

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator produces shape and operation IDs.
type IDGenerator interface {
	// ShapeID returns a new shape ID for the item at index within a batch
	// created at t. Salting the ID with the index keeps concurrent batch
	// items created in the same millisecond collision-free.
	ShapeID(t time.Time, index int) string

	// OperationID returns a new operation record ID.
	OperationID() string
}

// ULIDGenerator is the default IDGenerator, built on monotonic ULIDs.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *rand.Rand
}

// NewULIDGenerator creates a generator seeded from the current time.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ShapeID implements IDGenerator. IDs look like
// "shape-1756202400000-3-9GX2T7KQ".
func (g *ULIDGenerator) ShapeID(t time.Time, index int) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), g.entropy)
	g.mu.Unlock()

	suffix := id.String()
	suffix = suffix[len(suffix)-8:]
	return fmt.Sprintf("shape-%d-%d-%s", t.UnixMilli(), index, strings.ToUpper(suffix))
}

// OperationID implements IDGenerator. IDs look like
// "op-01J9ZB4E3WM0C8B6T2YV7Q5XKD".
func (g *ULIDGenerator) OperationID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := time.Now()
	return "op-" + ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
