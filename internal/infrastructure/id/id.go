package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-orders/internal/clock"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// DefaultTrackingPrefix starts every tracking number.
const DefaultTrackingPrefix = "SP"

// TrackingGenerator produces prefix + ULID tracking numbers: a 48-bit millisecond
// timestamp followed by 80 random bits. Each call draws a fresh random suffix.
type TrackingGenerator struct {
	prefix  string
	clock   clock.Clock
	mu      sync.Mutex
	entropy io.Reader
}

type TrackingOption func(*TrackingGenerator)

// WithEntropy replaces crypto/rand as the random source.
func WithEntropy(r io.Reader) TrackingOption {
	return func(g *TrackingGenerator) { g.entropy = r }
}

func NewTrackingGenerator(prefix string, clk clock.Clock, opts ...TrackingOption) *TrackingGenerator {
	if prefix == "" {
		prefix = DefaultTrackingPrefix
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	g := &TrackingGenerator{prefix: strings.ToUpper(prefix), clock: clk, entropy: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *TrackingGenerator) NewTrackingNumber() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.clock.Now()), g.entropy)
	if err != nil {
		return "", err
	}
	return g.prefix + id.String(), nil
}

// TrackingTime recovers the placement millisecond encoded in a tracking number.
func TrackingTime(prefix, tracking string) (time.Time, bool) {
	if prefix == "" {
		prefix = DefaultTrackingPrefix
	}
	raw, ok := strings.CutPrefix(tracking, strings.ToUpper(prefix))
	if !ok {
		return time.Time{}, false
	}
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(id.Time()).UTC(), true
}
