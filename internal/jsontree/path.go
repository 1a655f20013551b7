package jsontree

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a property path: either an object key or an array index.
type Segment struct {
	Key     string
	Index   int
	Indexed bool
}

func (s Segment) String() string {
	if s.Indexed {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a parsed property path such as props.pageProps.lenses[0].
type Path []Segment

func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.Indexed {
			b.WriteString(seg.String())
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Key)
	}
	return b.String()
}

// ParsePath parses a dotted/bracketed property path. Keys are separated by
// dots; numeric indices appear in brackets and may repeat (a[0][1].b).
func ParsePath(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty property path")
	}
	var path Path
	for _, part := range strings.Split(trimmed, ".") {
		if part == "" {
			return nil, fmt.Errorf("property path %q: empty segment", raw)
		}
		key := part
		var brackets string
		if idx := strings.IndexByte(part, '['); idx >= 0 {
			key = part[:idx]
			brackets = part[idx:]
		}
		if key != "" {
			path = append(path, Segment{Key: key, Index: 0, Indexed: false})
		} else if brackets == "" || len(path) == 0 {
			return nil, fmt.Errorf("property path %q: segment %q lacks a key", raw, part)
		}
		for brackets != "" {
			if brackets[0] != '[' {
				return nil, fmt.Errorf("property path %q: malformed index in %q", raw, part)
			}
			close := strings.IndexByte(brackets, ']')
			if close < 0 {
				return nil, fmt.Errorf("property path %q: unterminated index in %q", raw, part)
			}
			n, err := strconv.Atoi(brackets[1:close])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("property path %q: invalid index %q", raw, brackets[1:close])
			}
			path = append(path, Segment{Key: "", Index: n, Indexed: true})
			brackets = brackets[close+1:]
		}
	}
	return path, nil
}

// Resolve walks the path against the value tree. A missing segment yields an
// error naming the first unresolvable prefix.
func (v *Value) Resolve(path Path) (*Value, error) {
	cur := v
	for i, seg := range path {
		var next *Value
		if seg.Indexed {
			next = cur.Index(seg.Index)
		} else {
			next = cur.Field(seg.Key)
		}
		if next == nil {
			return nil, fmt.Errorf("property %s not found (have %s at %s)",
				path[:i+1].String(), cur.Kind(), prefixLabel(path[:i]))
		}
		cur = next
	}
	return cur, nil
}

func prefixLabel(prefix Path) string {
	if len(prefix) == 0 {
		return "root"
	}
	return prefix.String()
}
