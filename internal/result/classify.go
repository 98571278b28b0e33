package result

import (
	"fmt"
	"strconv"
)

// Classify maps a native driver reply onto the Result union. It never
// fails: shapes it does not recognise degrade to their textual form.
func Classify(reply any) Result {
	switch v := reply.(type) {
	case nil:
		return Nil()
	case string:
		return Success(KindString, v)
	case []byte:
		return Success(KindString, string(v))
	case int64:
		return Success(KindInteger, v)
	case int:
		return Success(KindInteger, int64(v))
	case float64:
		return Success(KindDouble, v)
	case bool:
		return Success(KindBoolean, v)
	case []any:
		return Success(KindArray, normaliseSlice(v))
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return Success(KindArray, out)
	case map[string]struct{}:
		members := make([]string, 0, len(v))
		for m := range v {
			members = append(members, m)
		}
		return Success(KindSet, newSet(members))
	case map[any]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[TextOf(k)] = TextOf(val)
		}
		return Success(KindHash, out)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, val := range v {
			out[k] = val
		}
		return Success(KindHash, out)
	default:
		return Success(KindString, fmt.Sprint(v))
	}
}

func normaliseSlice(in []any) []any {
	out := make([]any, len(in))
	for i, elem := range in {
		out[i] = normalise(elem)
	}
	return out
}

// normalise reduces nested reply elements to string, int64, float64, bool, nil,
// []any or map[string]string.
func normalise(v any) any {
	switch e := v.(type) {
	case nil, string, int64, bool, float64:
		return e
	case []byte:
		return string(e)
	case int:
		return int64(e)
	case []any:
		return normaliseSlice(e)
	case map[any]any:
		out := make(map[string]string, len(e))
		for k, val := range e {
			out[TextOf(k)] = TextOf(val)
		}
		return out
	case error:
		return e.Error()
	default:
		return fmt.Sprint(e)
	}
}

// TextOf renders a scalar reply element as plain text. Doubles use the
// shortest representation that round-trips.
func TextOf(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case []byte:
		return string(e)
	case int64:
		return strconv.FormatInt(e, 10)
	case float64:
		return strconv.FormatFloat(e, 'f', -1, 64)
	default:
		return fmt.Sprint(e)
	}
}

// AsSet re-tags an Array of scalars as a Set. Other results are returned
// unchanged.
func AsSet(r Result) Result {
	items, ok := r.Array()
	if !ok {
		return r
	}
	members := make([]string, 0, len(items))
	for _, item := range items {
		switch item.(type) {
		case []any, map[string]string:
			return r
		}
		members = append(members, TextOf(item))
	}
	out := Success(KindSet, newSet(members))
	out.Elapsed = r.Elapsed
	return out
}

// AsSortedSet re-tags a WITHSCORES reply as scored members. Both the flat
// member/score layout and the nested pair layout are accepted; anything
// else is returned unchanged.
func AsSortedSet(r Result) Result {
	items, ok := r.Array()
	if !ok {
		return r
	}

	var members []ScoredMember
	if len(items) > 0 {
		if _, nested := items[0].([]any); nested {
			members = make([]ScoredMember, 0, len(items))
			for _, item := range items {
				pair, ok := item.([]any)
				if !ok || len(pair) != 2 {
					return r
				}
				score, err := scoreOf(pair[1])
				if err != nil {
					return r
				}
				members = append(members, ScoredMember{Member: TextOf(pair[0]), Score: score})
			}
		} else {
			if len(items)%2 != 0 {
				return r
			}
			members = make([]ScoredMember, 0, len(items)/2)
			for i := 0; i < len(items); i += 2 {
				score, err := scoreOf(items[i+1])
				if err != nil {
					return r
				}
				members = append(members, ScoredMember{Member: TextOf(items[i]), Score: score})
			}
		}
	}
	if members == nil {
		members = []ScoredMember{}
	}

	out := Success(KindSortedSet, members)
	out.Elapsed = r.Elapsed
	return out
}

func scoreOf(v any) (float64, error) {
	switch s := v.(type) {
	case float64:
		return s, nil
	case int64:
		return float64(s), nil
	case string:
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("result: unexpected score %T", v)
	}
}
