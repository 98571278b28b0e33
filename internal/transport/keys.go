package transport

import (
	"context"
	"strconv"
	"time"

	"github.com/kvconsole/kvconsole/internal/result"
)

// Expiry describes the lifetime to give a key.
type Expiry struct {
	ttl     time.Duration
	persist bool
}

// NoExpiry removes any time-to-live from a key.
func NoExpiry() Expiry {
	return Expiry{persist: true}
}

// ExpireAfter sets a time-to-live, rounded up to whole seconds. A zero or
// negative duration expires the key immediately, as the server does.
func ExpireAfter(d time.Duration) Expiry {
	return Expiry{ttl: d}
}

// Persistent reports whether e removes the time-to-live.
func (e Expiry) Persistent() bool {
	return e.persist
}

// TTL returns the requested lifetime. It is zero for NoExpiry.
func (e Expiry) TTL() time.Duration {
	return e.ttl
}

// SetString stores value at key, replacing any existing value.
func (s *Session) SetString(ctx context.Context, key, value string) result.Result {
	r := s.run(ctx, "SET", key, value)
	if r.IsError() {
		return r
	}
	text, _ := r.Text()
	return result.Status(text).WithElapsed(r.Elapsed)
}

// Delete removes keys and returns how many existed.
func (s *Session) Delete(ctx context.Context, keys ...string) result.Result {
	if len(keys) == 0 {
		return result.Success(result.KindInteger, int64(0))
	}
	return s.run(ctx, "DEL", keys...)
}

// TTL returns the remaining time-to-live in seconds as an Integer result:
// -1 for keys without expiry and -2 for missing keys.
func (s *Session) TTL(ctx context.Context, key string) result.Result {
	return s.run(ctx, "TTL", key)
}

// Expire applies e to key. The Integer result is 1 when the key was changed.
func (s *Session) Expire(ctx context.Context, key string, e Expiry) result.Result {
	if e.Persistent() {
		return s.run(ctx, "PERSIST", key)
	}
	secs := int64(0)
	if e.ttl > 0 {
		secs = secondsOf(e.ttl)
	}
	return s.run(ctx, "EXPIRE", key, strconv.FormatInt(secs, 10))
}
