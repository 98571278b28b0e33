package result

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Kind tags the shape carried by a Result.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindArray
	KindHash
	KindSet
	KindSortedSet
	KindBoolean
	KindNil
	KindStatus
	KindError
	KindDouble
)

var kindNames = map[Kind]string{
	KindString:    "String",
	KindInteger:   "Integer",
	KindArray:     "Array",
	KindHash:      "Hash",
	KindSet:       "Set",
	KindSortedSet: "Sorted Set",
	KindBoolean:   "Boolean",
	KindNil:       "Nil",
	KindStatus:    "Status",
	KindError:     "Error",
	KindDouble:    "Double",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code classifies why a Result is an error.
type Code string

const (
	CodeNone             Code = ""
	CodeNotFound         Code = "not_found"
	CodeNotConnected     Code = "not_connected"
	CodeEmptyCommand     Code = "empty_command"
	CodeUnknownVerb      Code = "unknown_verb"
	CodeTransportFailure Code = "transport_failure"
	CodeInvalidState     Code = "invalid_state"
	CodeServerError      Code = "server_error"
)

// ScoredMember is one entry of a sorted-set reply.
type ScoredMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Result is the normalised outcome of every command execution.
//
// Value holds, by Kind: string (String, Status), int64 (Integer), []any
// (Array, elements are normalised primitives or nested []any), map[string]string
// (Hash), []string sorted (Set), []ScoredMember (SortedSet), bool (Boolean),
// float64 (Double), nil (Nil, Error).
type Result struct {
	Kind    Kind
	Value   any
	Message string
	Code    Code
	Elapsed time.Duration
}

// Success returns a non-error Result.
func Success(kind Kind, value any) Result {
	return Result{Kind: kind, Value: value}
}

// Status returns a Status Result carrying a short server or client message.
func Status(msg string) Result {
	return Result{Kind: KindStatus, Value: msg}
}

// Nil returns the absent-value Result.
func Nil() Result {
	return Result{Kind: KindNil}
}

// Failure returns an error Result with the given code.
func Failure(code Code, format string, args ...any) Result {
	return Result{Kind: KindError, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether the Result represents a failure.
func (r Result) IsError() bool {
	return r.Kind == KindError
}

// ElapsedMillis returns the execution time stamped by the session.
func (r Result) ElapsedMillis() int64 {
	return r.Elapsed.Milliseconds()
}

// WithElapsed returns a copy of r carrying d as its execution time.
func (r Result) WithElapsed(d time.Duration) Result {
	r.Elapsed = d
	return r
}

// Text returns the scalar value of String and Status results.
func (r Result) Text() (string, bool) {
	switch r.Kind {
	case KindString, KindStatus:
		s, ok := r.Value.(string)
		return s, ok
	}
	return "", false
}

func (r Result) Int() (int64, bool) {
	if r.Kind != KindInteger {
		return 0, false
	}
	n, ok := r.Value.(int64)
	return n, ok
}

func (r Result) Float() (float64, bool) {
	if r.Kind != KindDouble {
		return 0, false
	}
	f, ok := r.Value.(float64)
	return f, ok
}

func (r Result) Bool() (bool, bool) {
	if r.Kind != KindBoolean {
		return false, false
	}
	b, ok := r.Value.(bool)
	return b, ok
}

func (r Result) Array() ([]any, bool) {
	if r.Kind != KindArray {
		return nil, false
	}
	a, ok := r.Value.([]any)
	return a, ok
}

func (r Result) Hash() (map[string]string, bool) {
	if r.Kind != KindHash {
		return nil, false
	}
	m, ok := r.Value.(map[string]string)
	return m, ok
}

func (r Result) Set() ([]string, bool) {
	if r.Kind != KindSet {
		return nil, false
	}
	s, ok := r.Value.([]string)
	return s, ok
}

func (r Result) SortedSet() ([]ScoredMember, bool) {
	if r.Kind != KindSortedSet {
		return nil, false
	}
	s, ok := r.Value.([]ScoredMember)
	return s, ok
}

func (r Result) String() string {
	if r.IsError() {
		return "Error: " + r.Message
	}
	if r.Value == nil {
		return "null"
	}
	return fmt.Sprint(r.Value)
}

// Error is the Go error form of an error Result.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// AsError returns nil for successful results and an *Error otherwise.
func (r Result) AsError() error {
	if !r.IsError() {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message}
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// newSet copies members into a sorted, de-duplicated slice.
func newSet(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
