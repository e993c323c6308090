package ratelimit

import "time"

// Bucket is the token-bucket state tracked for one client key.
type Bucket struct {
	Tokens     uint64
	LastRefill time.Time
	LastAccess time.Time // stamped on every check, admitted or not; drives eviction
}

// NewBucket returns a full bucket first seen at now.
func NewBucket(maxTokens uint64, now time.Time) *Bucket {
	return &Bucket{
		Tokens:     maxTokens,
		LastRefill: now,
		LastAccess: now,
	}
}

// Refill credits rate tokens per whole second elapsed since the last refill,
// capped at maxTokens. Partial seconds are not credited and do not move
// LastRefill, so a burst inside one second never earns anything back.
func (b *Bucket) Refill(now time.Time, rate, maxTokens uint64) {
	d := now.Sub(b.LastRefill)
	if d < time.Second {
		return
	}
	elapsed := uint64(d / time.Second)

	switch {
	case b.Tokens > maxTokens:
		b.Tokens = maxTokens
	case b.Tokens < maxTokens && rate > 0:
		// saturate instead of multiplying, elapsed*rate can overflow after long idles
		if missing := maxTokens - b.Tokens; elapsed >= ceilDiv(missing, rate) {
			b.Tokens = maxTokens
		} else {
			b.Tokens += elapsed * rate
		}
	}
	b.LastRefill = now
}

// TryConsume spends cost tokens if the bucket holds enough of them.
func (b *Bucket) TryConsume(cost uint64) bool {
	if b.Tokens < cost {
		return false
	}
	b.Tokens -= cost
	return true
}

// FullAt reports when the bucket would be back at maxTokens with no traffic.
func (b *Bucket) FullAt(rate, maxTokens uint64) time.Time {
	if b.Tokens >= maxTokens || rate == 0 {
		return b.LastRefill
	}
	secs := ceilDiv(maxTokens-b.Tokens, rate)
	return b.LastRefill.Add(time.Duration(secs) * time.Second)
}

func ceilDiv(a, b uint64) uint64 {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
