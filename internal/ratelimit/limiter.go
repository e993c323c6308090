package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrZeroCapacity  = errors.New("ratelimit: bucket capacity is zero")
	ErrCapacityRange = errors.New("ratelimit: bucket capacity overflows")
	ErrNoClientBound = errors.New("ratelimit: max tracked clients must be positive")
	ErrSweepSchedule = errors.New("ratelimit: sweep interval must be positive")
	ErrEntryLifetime = errors.New("ratelimit: entry lifetime must be positive")
)

// Config is the process-wide limiter configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	RatePerSecond     uint64 // tokens added per elapsed whole second
	BucketMultiplier  uint64 // capacity = RatePerSecond * BucketMultiplier
	MaxTrackedClients int
	EntryLifetime     time.Duration
	SweepInterval     time.Duration
}

// MaxTokens is the bucket capacity.
func (c Config) MaxTokens() uint64 {
	return c.RatePerSecond * c.BucketMultiplier
}

func (c Config) Validate() error {
	if c.RatePerSecond == 0 || c.BucketMultiplier == 0 {
		return fmt.Errorf("%w (rate=%d multiplier=%d)", ErrZeroCapacity, c.RatePerSecond, c.BucketMultiplier)
	}
	if c.RatePerSecond > math.MaxUint64/c.BucketMultiplier {
		return fmt.Errorf("%w (rate=%d multiplier=%d)", ErrCapacityRange, c.RatePerSecond, c.BucketMultiplier)
	}
	if c.MaxTrackedClients <= 0 {
		return ErrNoClientBound
	}
	if c.SweepInterval <= 0 {
		return ErrSweepSchedule
	}
	if c.EntryLifetime <= 0 {
		return ErrEntryLifetime
	}
	return nil
}

type Decision struct {
	Allowed      bool
	Limit        uint64 // bucket capacity
	Remaining    uint64 // tokens left after this decision
	ResetUnixSec int64  // when the bucket would be full again with no more traffic
}

// Limiter is the admission check request handlers call before doing any work.
// A denied decision is a normal outcome, not an error.
type Limiter interface {
	Allow(ctx context.Context, key string, cost uint64) Decision
	Close() error
}
