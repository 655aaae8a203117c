package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/timetravel/internal/ir"
)

// Path addresses a value inside the tree. Segments are object keys or
// decimal array indices. The empty Path is the root.
type Path []string

// ParsePath parses a slash-separated path such as "/todos/0/title".
// "" and "/" both denote the root. Segments use JSON Pointer escaping:
// "~1" stands for "/" and "~0" for "~".
func ParsePath(s string) (Path, error) {
	if s == "" || s == "/" {
		return Path{}, nil
	}
	if !strings.HasPrefix(s, "/") {
		return nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPath, s)
	}

	raw := strings.Split(s[1:], "/")
	p := make(Path, len(raw))
	for i, seg := range raw {
		if seg == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, s)
		}
		p[i] = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String renders the path in the form accepted by ParsePath.
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(seg, "~", "~0"), "/", "~1"))
	}
	return b.String()
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Join appends a relative path.
func (p Path) Join(rel Path) Path {
	out := make(Path, 0, len(p)+len(rel))
	out = append(out, p...)
	return append(out, rel...)
}

// arrayIndex parses an array index segment. When allowAppend is set, the
// index may equal n, meaning "one past the end".
func arrayIndex(seg string, n int, allowAppend bool) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || strconv.Itoa(idx) != seg {
		return 0, fmt.Errorf("%w: %q is not an array index", ErrInvalidPath, seg)
	}
	limit := n
	if allowAppend {
		limit = n + 1
	}
	if idx >= limit {
		return 0, fmt.Errorf("%w: index %d out of range (len %d)", ErrPathNotFound, idx, n)
	}
	return idx, nil
}

// getAt returns the value at p under cur without copying it.
func getAt(cur ir.IRValue, p Path) (ir.IRValue, error) {
	for i, seg := range p {
		switch c := cur.(type) {
		case ir.IRObject:
			child, ok := c[seg]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p[:i+1])
			}
			cur = child
		case ir.IRArray:
			idx, err := arrayIndex(seg, len(c), false)
			if err != nil {
				return nil, err
			}
			cur = c[idx]
		default:
			return nil, fmt.Errorf("%w: cannot descend into %s at %s", ErrTypeMismatch, ir.TypeName(cur), p[:i])
		}
	}
	return cur, nil
}

// setAt writes v at p under cur, mutating containers in place, and
// returns the (possibly reallocated) value that replaces cur.
// Intermediate containers must exist; only the last segment may be new.
func setAt(cur ir.IRValue, p Path, v ir.IRValue) (ir.IRValue, error) {
	if len(p) == 0 {
		return v, nil
	}
	switch c := cur.(type) {
	case ir.IRObject:
		if len(p) == 1 {
			c[p[0]] = v
			return c, nil
		}
		child, ok := c[p[0]]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p[0])
		}
		updated, err := setAt(child, p[1:], v)
		if err != nil {
			return nil, err
		}
		c[p[0]] = updated
		return c, nil
	case ir.IRArray:
		idx, err := arrayIndex(p[0], len(c), len(p) == 1)
		if err != nil {
			return nil, err
		}
		if idx == len(c) {
			return append(c, v), nil
		}
		updated, err := setAt(c[idx], p[1:], v)
		if err != nil {
			return nil, err
		}
		c[idx] = updated
		return c, nil
	default:
		return nil, fmt.Errorf("%w: cannot descend into %s", ErrTypeMismatch, ir.TypeName(cur))
	}
}

// deleteAt removes the value at p under cur. Array elements after the
// removed index shift down by one.
func deleteAt(cur ir.IRValue, p Path) (ir.IRValue, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: cannot delete the root", ErrInvalidPath)
	}
	switch c := cur.(type) {
	case ir.IRObject:
		child, ok := c[p[0]]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p[0])
		}
		if len(p) == 1 {
			delete(c, p[0])
			return c, nil
		}
		updated, err := deleteAt(child, p[1:])
		if err != nil {
			return nil, err
		}
		c[p[0]] = updated
		return c, nil
	case ir.IRArray:
		idx, err := arrayIndex(p[0], len(c), false)
		if err != nil {
			return nil, err
		}
		if len(p) == 1 {
			return append(c[:idx:idx], c[idx+1:]...), nil
		}
		updated, err := deleteAt(c[idx], p[1:])
		if err != nil {
			return nil, err
		}
		c[idx] = updated
		return c, nil
	default:
		return nil, fmt.Errorf("%w: cannot descend into %s", ErrTypeMismatch, ir.TypeName(cur))
	}
}

// Lookup returns the value at path inside v without copying it.
func Lookup(v ir.IRValue, path string) (ir.IRValue, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return getAt(v, p)
}
