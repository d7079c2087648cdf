package app

import (
	"fmt"
	"strconv"
	"strings"

	"travel_desk/internal/domain"
)

// segment is one step of a field path: a map key or an array index.
// wildcard ([*]) is only legal in schema patterns.
type segment struct {
	key      string
	index    int
	isIndex  bool
	wildcard bool
}

// parsePath splits "restaurants[2].cuisineType" into segments.
func parsePath(path string, allowWildcard bool) ([]segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", domain.ErrInvalidPath)
	}
	var segs []segment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
		}
		name := part
		rest := ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, rest = part[:i], part[i:]
		}
		if name == "" {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
		}
		segs = append(segs, segment{key: name})
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPath, path)
			}
			inner := rest[1:end]
			rest = rest[end+1:]
			if inner == "*" {
				if !allowWildcard {
					return nil, fmt.Errorf("%w: wildcard in %q", domain.ErrInvalidPath, path)
				}
				segs = append(segs, segment{isIndex: true, wildcard: true})
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad index in %q", domain.ErrInvalidPath, path)
			}
			segs = append(segs, segment{isIndex: true, index: n})
		}
	}
	return segs, nil
}

func formatPath(segs []segment) string {
	var b strings.Builder
	for i, s := range segs {
		switch {
		case s.wildcard:
			b.WriteString("[*]")
		case s.isIndex:
			b.WriteString("[" + strconv.Itoa(s.index) + "]")
		default:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.key)
		}
	}
	return b.String()
}

// lookup walks a JSON-like tree. A missing key yields (nil, nil); indexing
// into a non-array or past its end is an invalid path.
func lookup(root any, segs []segment) (any, error) {
	cur := root
	for _, s := range segs {
		if s.isIndex {
			arr, ok := cur.([]any)
			if !ok || s.index >= len(arr) {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPath, formatPath(segs))
			}
			cur = arr[s.index]
			continue
		}
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[s.key]
			if !ok {
				return nil, nil
			}
			cur = v
		case nil:
			return nil, nil
		default:
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPath, formatPath(segs))
		}
	}
	return cur, nil
}

// assign writes v at segs below cur and returns the (possibly new) container.
// Missing maps are created; arrays must already hold the index.
func assign(cur any, segs []segment, v any) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	s := segs[0]
	if s.isIndex {
		arr, ok := cur.([]any)
		if !ok || s.index >= len(arr) {
			return nil, domain.ErrInvalidPath
		}
		nv, err := assign(arr[s.index], segs[1:], v)
		if err != nil {
			return nil, err
		}
		arr[s.index] = nv
		return arr, nil
	}
	var m map[string]any
	switch c := cur.(type) {
	case map[string]any:
		m = c
	case nil:
		m = map[string]any{}
	default:
		return nil, domain.ErrInvalidPath
	}
	nv, err := assign(m[s.key], segs[1:], v)
	if err != nil {
		return nil, err
	}
	m[s.key] = nv
	return m, nil
}

// expand resolves a wildcard pattern against root into concrete paths.
// Key segments are always produced (so required rules see missing fields);
// [*] produces one path per existing element.
func expand(root any, pattern []segment) [][]segment {
	out := [][]segment{nil}
	for _, s := range pattern {
		var next [][]segment
		for _, prefix := range out {
			if !s.wildcard {
				next = append(next, appendSeg(prefix, s))
				continue
			}
			v, err := lookup(root, prefix)
			if err != nil {
				continue
			}
			arr, _ := v.([]any)
			for i := range arr {
				next = append(next, appendSeg(prefix, segment{isIndex: true, index: i}))
			}
		}
		out = next
	}
	return out
}

func appendSeg(prefix []segment, s segment) []segment {
	p := make([]segment, len(prefix), len(prefix)+1)
	copy(p, prefix)
	return append(p, s)
}
