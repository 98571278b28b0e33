package transport

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kvconsole/kvconsole/internal/result"
)

// The typed reads below return an empty value when the session is
// disconnected or the command fails. They are conveniences for browsing
// keys, not transactional operations.

// KeysMatching returns the keys that match pattern, sorted.
func (s *Session) KeysMatching(ctx context.Context, pattern string) []string {
	if pattern == "" {
		pattern = "*"
	}
	keys := stringsOf(s.read(ctx, "KEYS", pattern))
	sort.Strings(keys)
	return keys
}

// GetString returns the string stored at key. The second return is false
// when the key is missing or the read failed.
func (s *Session) GetString(ctx context.Context, key string) (string, bool) {
	reply := s.read(ctx, "GET", key)
	if reply == nil {
		return "", false
	}
	return result.TextOf(reply), true
}

// GetHash returns every field of the hash at key.
func (s *Session) GetHash(ctx context.Context, key string) map[string]string {
	switch v := s.read(ctx, "HGETALL", key).(type) {
	case map[any]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[result.TextOf(k)] = result.TextOf(val)
		}
		return out
	case []any:
		out := make(map[string]string, len(v)/2)
		for i := 0; i+1 < len(v); i += 2 {
			out[result.TextOf(v[i])] = result.TextOf(v[i+1])
		}
		return out
	}
	return map[string]string{}
}

// GetRange returns list elements between start and end, inclusive.
func (s *Session) GetRange(ctx context.Context, key string, start, end int64) []string {
	return stringsOf(s.read(ctx, "LRANGE", key, strconv.FormatInt(start, 10), strconv.FormatInt(end, 10)))
}

// GetMembers returns the members of the set at key, sorted.
func (s *Session) GetMembers(ctx context.Context, key string) []string {
	members := stringsOf(s.read(ctx, "SMEMBERS", key))
	sort.Strings(members)
	return members
}

// GetScoredMembers returns the members of the sorted set at key with their
// scores, lowest score first.
func (s *Session) GetScoredMembers(ctx context.Context, key string) []result.ScoredMember {
	r := result.AsSortedSet(s.run(ctx, "ZRANGE", key, "0", "-1", "WITHSCORES"))
	members, ok := r.SortedSet()
	if !ok {
		if r.IsError() && r.Code != result.CodeNotConnected {
			s.logger.Debug("typed read failed", zap.String("verb", "ZRANGE"), zap.String("error", r.Message))
		}
		return []result.ScoredMember{}
	}
	return members
}

// GetType returns the server-reported type of key, or "none".
func (s *Session) GetType(ctx context.Context, key string) string {
	reply := s.read(ctx, "TYPE", key)
	if reply == nil {
		return "none"
	}
	return result.TextOf(reply)
}

// Size returns the number of keys in the selected database.
func (s *Session) Size(ctx context.Context) int64 {
	n, _ := s.read(ctx, "DBSIZE").(int64)
	return n
}

// Flush removes every key in the selected database.
func (s *Session) Flush(ctx context.Context) result.Result {
	r := s.run(ctx, "FLUSHDB")
	if r.IsError() {
		return r
	}
	text, _ := r.Text()
	return result.Status(text).WithElapsed(r.Elapsed)
}

// Info returns the server INFO report as a String result.
func (s *Session) Info(ctx context.Context, section ...string) result.Result {
	r := s.run(ctx, "INFO", section...)
	if r.IsError() {
		return r
	}
	text, _ := r.Text()
	return result.Success(result.KindString, text).WithElapsed(r.Elapsed)
}

// read issues a session-built command and drops failures after logging them.
func (s *Session) read(ctx context.Context, verb string, args ...string) any {
	reply, err := s.do(ctx, verb, args...)
	if err != nil {
		if !errors.Is(err, errNotConnected) {
			s.logger.Debug("typed read failed", zap.String("verb", verb), zap.Error(err))
		}
		return nil
	}
	return reply
}

// run issues a session-built command and returns the classified Result.
func (s *Session) run(ctx context.Context, verb string, args ...string) result.Result {
	start := s.now()
	reply, err := s.do(ctx, verb, args...)
	elapsed := s.now().Sub(start)
	if err != nil {
		return failureFor(verb, err).WithElapsed(elapsed)
	}
	return result.Classify(reply).WithElapsed(elapsed)
}

func stringsOf(reply any) []string {
	switch v := reply.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, result.TextOf(item))
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case map[string]struct{}:
		out := make([]string, 0, len(v))
		for m := range v {
			out = append(out, m)
		}
		return out
	}
	return []string{}
}

// secondsOf converts d to whole seconds, rounding up partial seconds so a
// short positive duration never becomes an immediate expiry.
func secondsOf(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
