package result

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Format renders r the way redis-cli prints replies.
func Format(r Result) string {
	var b strings.Builder
	switch r.Kind {
	case KindError:
		b.WriteString("(error) ")
		b.WriteString(r.Message)
	case KindNil:
		b.WriteString("(nil)")
	case KindInteger:
		n, _ := r.Int()
		b.WriteString("(integer) ")
		b.WriteString(strconv.FormatInt(n, 10))
	case KindDouble:
		f, _ := r.Float()
		b.WriteString("(double) ")
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	case KindBoolean:
		v, _ := r.Bool()
		if v {
			b.WriteString("(true)")
		} else {
			b.WriteString("(false)")
		}
	case KindStatus:
		s, _ := r.Text()
		b.WriteString(s)
	case KindString:
		s, _ := r.Text()
		b.WriteString(strconv.Quote(s))
	case KindArray:
		items, _ := r.Array()
		writeList(&b, items, "")
	case KindSet:
		members, _ := r.Set()
		items := make([]any, len(members))
		for i, m := range members {
			items[i] = m
		}
		writeList(&b, items, "")
	case KindSortedSet:
		members, _ := r.SortedSet()
		if len(members) == 0 {
			b.WriteString("(empty array)")
			break
		}
		width := len(strconv.Itoa(len(members)))
		for i, m := range members {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%*d) %s (score %s)", width, i+1, strconv.Quote(m.Member), strconv.FormatFloat(m.Score, 'f', -1, 64))
		}
	case KindHash:
		fields, _ := r.Hash()
		writeHash(&b, fields, "")
	default:
		b.WriteString(r.String())
	}
	return b.String()
}

func writeList(b *strings.Builder, items []any, indent string) {
	if len(items) == 0 {
		b.WriteString("(empty array)")
		return
	}
	width := len(strconv.Itoa(len(items)))
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(indent)
		}
		prefix := fmt.Sprintf("%*d) ", width, i+1)
		b.WriteString(prefix)
		writeElement(b, item, indent+strings.Repeat(" ", len(prefix)))
	}
}

func writeHash(b *strings.Builder, fields map[string]string, indent string) {
	if len(fields) == 0 {
		b.WriteString("(empty hash)")
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	width := len(strconv.Itoa(len(keys)))
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(indent)
		}
		fmt.Fprintf(b, "%*d) %s => %s", width, i+1, strconv.Quote(k), strconv.Quote(fields[k]))
	}
}

func writeElement(b *strings.Builder, item any, indent string) {
	switch v := item.(type) {
	case nil:
		b.WriteString("(nil)")
	case string:
		b.WriteString(strconv.Quote(v))
	case int64:
		b.WriteString("(integer) ")
		b.WriteString(strconv.FormatInt(v, 10))
	case float64:
		b.WriteString("(double) ")
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		fmt.Fprintf(b, "(%t)", v)
	case []any:
		writeList(b, v, indent)
	case map[string]string:
		writeHash(b, v, indent)
	default:
		b.WriteString(fmt.Sprint(v))
	}
}
