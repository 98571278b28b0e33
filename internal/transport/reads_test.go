package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kvconsole/kvconsole/internal/result"
)

func TestTypedReadsWhenDisconnected(t *testing.T) {
	driver := &fakeDriver{}
	s := NewSession(Options{Driver: driver})
	ctx := context.Background()

	if keys := s.KeysMatching(ctx, "*"); len(keys) != 0 || keys == nil {
		t.Fatalf("KeysMatching() = %#v, want empty non-nil slice", keys)
	}
	if _, ok := s.GetString(ctx, "k"); ok {
		t.Fatalf("GetString() should report a miss")
	}
	if h := s.GetHash(ctx, "h"); len(h) != 0 || h == nil {
		t.Fatalf("GetHash() = %#v, want empty map", h)
	}
	if l := s.GetRange(ctx, "l", 0, -1); len(l) != 0 {
		t.Fatalf("GetRange() = %v, want empty", l)
	}
	if m := s.GetMembers(ctx, "s"); len(m) != 0 {
		t.Fatalf("GetMembers() = %v, want empty", m)
	}
	if z := s.GetScoredMembers(ctx, "z"); len(z) != 0 || z == nil {
		t.Fatalf("GetScoredMembers() = %#v, want empty non-nil slice", z)
	}
	if typ := s.GetType(ctx, "k"); typ != "none" {
		t.Fatalf("GetType() = %q, want none", typ)
	}
	if n := s.Size(ctx); n != 0 {
		t.Fatalf("Size() = %d, want 0", n)
	}
	if r := s.Flush(ctx); r.Code != result.CodeNotConnected {
		t.Fatalf("Flush() = %+v, want NotConnected", r)
	}
	if r := s.Expire(ctx, "k", NoExpiry()); r.Code != result.CodeNotConnected {
		t.Fatalf("Expire() = %+v, want NotConnected", r)
	}
	if driver.openCount() != 0 {
		t.Fatalf("disconnected reads must not contact the driver")
	}
}

func TestTypedReadFailuresAreLoggedOnlyWhenConnected(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	pool := newFakePool()
	s := NewSession(Options{Driver: &fakeDriver{next: pool}, Logger: zap.New(core)})
	ctx := context.Background()

	s.GetType(ctx, "k")
	s.GetScoredMembers(ctx, "z")
	if n := logs.FilterMessage("typed read failed").Len(); n != 0 {
		t.Fatalf("disconnected reads logged %d failures", n)
	}

	if r := s.Open(ctx, testProfile("local")); r.IsError() {
		t.Fatalf("open: %s", r.Message)
	}
	pool.errs["TYPE"] = errors.New("i/o timeout")
	pool.errs["ZRANGE"] = errors.New("i/o timeout")
	s.GetType(ctx, "k")
	s.GetScoredMembers(ctx, "z")
	if n := logs.FilterMessage("typed read failed").Len(); n != 2 {
		t.Fatalf("expected 2 logged failures, got %d", n)
	}
}

func TestGetScoredMembersSendsKeyUnchanged(t *testing.T) {
	s, pool := connectedSession(t)
	pool.replies["ZRANGE"] = []any{[]any{"low", 1.0}, []any{"high", 2.5}}
	key := `quoted "key" with spaces`

	got := s.GetScoredMembers(context.Background(), key)
	want := []result.ScoredMember{{Member: "low", Score: 1}, {Member: "high", Score: 2.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("members mismatch (-want +got):\n%s", diff)
	}
	calls := pool.recorded()
	if diff := cmp.Diff([]any{"ZRANGE", key, "0", "-1", "WITHSCORES"}, calls[len(calls)-1]); diff != "" {
		t.Fatalf("sent arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestGetScoredMembersUnexpectedReply(t *testing.T) {
	s, pool := connectedSession(t)
	pool.errs["ZRANGE"] = fakeServerError("WRONGTYPE Operation against a key holding the wrong kind of value")

	if got := s.GetScoredMembers(context.Background(), "k"); len(got) != 0 || got == nil {
		t.Fatalf("GetScoredMembers() = %#v, want empty non-nil slice", got)
	}
}

func TestTypedReadsConvertReplies(t *testing.T) {
	s, pool := connectedSession(t)
	ctx := context.Background()
	pool.replies["KEYS"] = []any{"b", "a", "c"}
	pool.replies["GET"] = "value"
	pool.replies["HGETALL"] = []any{"f1", "v1", "f2", int64(2)}
	pool.replies["LRANGE"] = []any{"x", "y"}
	pool.replies["SMEMBERS"] = []any{"z", "m"}
	pool.replies["TYPE"] = "hash"
	pool.replies["DBSIZE"] = int64(42)

	if diff := cmp.Diff([]string{"a", "b", "c"}, s.KeysMatching(ctx, "")); diff != "" {
		t.Fatalf("KeysMatching mismatch (-want +got):\n%s", diff)
	}
	if got, ok := s.GetString(ctx, "k"); !ok || got != "value" {
		t.Fatalf("GetString() = (%q, %v)", got, ok)
	}
	if diff := cmp.Diff(map[string]string{"f1": "v1", "f2": "2"}, s.GetHash(ctx, "h")); diff != "" {
		t.Fatalf("GetHash mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "y"}, s.GetRange(ctx, "l", 0, -1)); diff != "" {
		t.Fatalf("GetRange mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"m", "z"}, s.GetMembers(ctx, "s")); diff != "" {
		t.Fatalf("GetMembers mismatch (-want +got):\n%s", diff)
	}
	if typ := s.GetType(ctx, "h"); typ != "hash" {
		t.Fatalf("GetType() = %q", typ)
	}
	if n := s.Size(ctx); n != 42 {
		t.Fatalf("Size() = %d", n)
	}

	want := [][]any{
		{"KEYS", "*"},
		{"GET", "k"},
		{"HGETALL", "h"},
		{"LRANGE", "l", "0", "-1"},
		{"SMEMBERS", "s"},
		{"TYPE", "h"},
		{"DBSIZE"},
	}
	if diff := cmp.Diff(want, pool.recorded()); diff != "" {
		t.Fatalf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestGetHashFromMapReply(t *testing.T) {
	s, pool := connectedSession(t)
	pool.replies["HGETALL"] = map[any]any{"a": "1", "b": []byte("2")}
	if diff := cmp.Diff(map[string]string{"a": "1", "b": "2"}, s.GetHash(context.Background(), "h")); diff != "" {
		t.Fatalf("GetHash mismatch (-want +got):\n%s", diff)
	}
}

func TestTypedReadFailureFallsBack(t *testing.T) {
	s, pool := connectedSession(t)
	pool.errs["GET"] = errors.New("broken pipe")
	if _, ok := s.GetString(context.Background(), "k"); ok {
		t.Fatalf("failed read should report a miss")
	}
}

func TestKeyActions(t *testing.T) {
	s, pool := connectedSession(t)
	ctx := context.Background()
	pool.replies["SET"] = "OK"
	pool.replies["DEL"] = int64(2)
	pool.replies["TTL"] = int64(-1)
	pool.replies["EXPIRE"] = int64(1)
	pool.replies["PERSIST"] = int64(1)
	pool.replies["FLUSHDB"] = "OK"

	if r := s.SetString(ctx, "k", "hello world"); r.Kind != result.KindStatus {
		t.Fatalf("SetString() kind = %s (%s)", r.Kind, r.Message)
	}
	if n, _ := s.Delete(ctx, "a", "b").Int(); n != 2 {
		t.Fatalf("Delete() = %d, want 2", n)
	}
	if n, _ := s.TTL(ctx, "k").Int(); n != -1 {
		t.Fatalf("TTL() = %d, want -1", n)
	}
	s.Expire(ctx, "k", ExpireAfter(1500*time.Millisecond))
	s.Expire(ctx, "k", ExpireAfter(-time.Second))
	s.Expire(ctx, "k", NoExpiry())
	if r := s.Flush(ctx); r.Kind != result.KindStatus {
		t.Fatalf("Flush() kind = %s", r.Kind)
	}

	want := [][]any{
		{"SET", "k", "hello world"},
		{"DEL", "a", "b"},
		{"TTL", "k"},
		{"EXPIRE", "k", "2"},
		{"EXPIRE", "k", "0"},
		{"PERSIST", "k"},
		{"FLUSHDB"},
	}
	if diff := cmp.Diff(want, pool.recorded()); diff != "" {
		t.Fatalf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteWithoutKeys(t *testing.T) {
	s, pool := connectedSession(t)
	if n, ok := s.Delete(context.Background()).Int(); !ok || n != 0 {
		t.Fatalf("Delete() = (%d, %v), want (0, true)", n, ok)
	}
	if len(pool.recorded()) != 0 {
		t.Fatalf("empty delete must not reach the server")
	}
}

func TestExpiryAccessors(t *testing.T) {
	if !NoExpiry().Persistent() || NoExpiry().TTL() != 0 {
		t.Fatalf("NoExpiry should be persistent with zero TTL")
	}
	e := ExpireAfter(time.Minute)
	if e.Persistent() || e.TTL() != time.Minute {
		t.Fatalf("ExpireAfter(1m) = %+v", e)
	}
}

func TestSecondsOfRoundsUp(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int64
	}{
		{d: time.Second, want: 1},
		{d: 1001 * time.Millisecond, want: 2},
		{d: time.Millisecond, want: 1},
		{d: 90 * time.Second, want: 90},
		{d: 90*time.Second + time.Nanosecond, want: 91},
	}
	for _, tc := range cases {
		if got := secondsOf(tc.d); got != tc.want {
			t.Fatalf("secondsOf(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
