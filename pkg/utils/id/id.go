// Package id 生成请求 ID 等可排序的唯一标识.
package id

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrInvalidULID is returned by ParseULID for malformed input.
var ErrInvalidULID = errors.New("invalid ULID format")

// Generator creates unique string IDs.
type Generator interface {
	Generate() string
}

// ULIDGenerator produces monotonic ULIDs; it is safe for concurrent use.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

var (
	defaultULID *ULIDGenerator
	initOnce    sync.Once
)

// NewULID returns a ULID from the process-wide generator.
func NewULID() string {
	initOnce.Do(func() { defaultULID = NewULIDGenerator() })
	return defaultULID.Generate()
}

// ParseULID validates s and returns its timestamp.
func ParseULID(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, ErrInvalidULID
	}
	return ulid.Time(u.Time()), nil
}
