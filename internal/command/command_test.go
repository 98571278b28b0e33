package command

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "quoted group", input: `SET key "a b"`, want: []string{"SET", "key", "a b"}},
		{name: "empty", input: "", want: []string{}},
		{name: "only whitespace", input: " \t  ", want: []string{}},
		{name: "collapses whitespace", input: "a  b", want: []string{"a", "b"}},
		{name: "leading and trailing space", input: "  GET  x  ", want: []string{"GET", "x"}},
		{name: "tabs separate", input: "HGET\th\tf", want: []string{"HGET", "h", "f"}},
		{name: "unterminated quote keeps tail", input: `a "b`, want: []string{"a", "b"}},
		{name: "unterminated quote keeps spaces", input: `SET k "hello wor`, want: []string{"SET", "k", "hello wor"}},
		{name: "escaped quote is literal", input: `SET k a\"b`, want: []string{"SET", "k", `a\"b`}},
		{name: "quote inside token joins", input: `x"y z"w`, want: []string{"xy zw"}},
		{name: "empty quotes yield nothing", input: `GET ""`, want: []string{"GET"}},
		{name: "unicode preserved", input: `SET k "zażółć gęślą"`, want: []string{"SET", "k", "zażółć gęślą"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.input)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Tokenize(%q) mismatch (-want +got):\n%s", tc.input, diff)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"get", "GET", true},
		{"Ping", "PING", true},
		{"hgetall", "HGETALL", true},
		{"FLUSHDB", "FLUSHDB", true},
		{"frobnicate", "FROBNICATE", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := Resolve(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("Resolve(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestVerbsSorted(t *testing.T) {
	verbs := Verbs()
	if len(verbs) < 100 {
		t.Fatalf("expected a full command table, got %d verbs", len(verbs))
	}
	for i := 1; i < len(verbs); i++ {
		if verbs[i-1] >= verbs[i] {
			t.Fatalf("verbs not strictly sorted at %d: %q >= %q", i, verbs[i-1], verbs[i])
		}
	}
}

func TestReplyHints(t *testing.T) {
	if !ReturnsSet("smembers") {
		t.Fatalf("SMEMBERS should be a set reply")
	}
	if ReturnsSet("LRANGE") {
		t.Fatalf("LRANGE should not be a set reply")
	}
	if !ReturnsScoredMembers("zrange", []string{"z", "0", "-1", "withscores"}) {
		t.Fatalf("ZRANGE WITHSCORES should pair scores")
	}
	if ReturnsScoredMembers("ZRANGE", []string{"z", "0", "-1"}) {
		t.Fatalf("ZRANGE without WITHSCORES should not pair scores")
	}
	if ReturnsScoredMembers("LRANGE", []string{"WITHSCORES"}) {
		t.Fatalf("non sorted-set verb should never pair scores")
	}
}

func TestConnectionBound(t *testing.T) {
	for _, verb := range []string{"select", "MULTI", "subscribe", "monitor", "auth"} {
		if !ConnectionBound(verb) {
			t.Fatalf("%s should be connection bound", verb)
		}
	}
	for _, verb := range []string{"GET", "SET", "PING", "HGETALL"} {
		if ConnectionBound(verb) {
			t.Fatalf("%s should not be connection bound", verb)
		}
	}
}

func TestJoinRoundTrip(t *testing.T) {
	cases := [][]string{
		{"GET", "key"},
		{"SET", "greeting", "hello world"},
		{"HSET", "h", "field", "tab\tseparated"},
	}
	for _, args := range cases {
		line := Join(args)
		if diff := cmp.Diff(args, Tokenize(line)); diff != "" {
			t.Errorf("Tokenize(Join(%q)) mismatch (-want +got):\n%s", args, diff)
		}
	}
}

func TestJoinShowsEmptyArguments(t *testing.T) {
	if got := Join([]string{"SET", "k", ""}); got != `SET k ""` {
		t.Fatalf("Join() = %q", got)
	}
}
