package app

import (
	"encoding/json"
	"fmt"

	"travel_desk/internal/domain"
)

// FieldStore holds a draft's scalar fields and nested child arrays as a
// JSON-shaped tree. Money values are kept in major units, as the operator
// typed them; conversion happens at submission.
type FieldStore struct {
	root map[string]any
}

func NewFieldStore() *FieldStore { return &FieldStore{root: map[string]any{}} }

func (s *FieldStore) Set(path string, v any) error {
	segs, err := parsePath(path, false)
	if err != nil {
		return err
	}
	nv, err := normalize(v)
	if err != nil {
		return err
	}
	if _, err := assign(s.root, segs, nv); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Get returns nil for an absent field.
func (s *FieldStore) Get(path string) (any, error) {
	segs, err := parsePath(path, false)
	if err != nil {
		return nil, err
	}
	v, err := lookup(s.root, segs)
	if err != nil {
		return nil, err
	}
	return deepCopy(v), nil
}

// AppendChild adds a record to the array at arrayPath, creating the array
// if the field is unset, and returns the new element's index.
func (s *FieldStore) AppendChild(arrayPath string, rec map[string]any) (int, error) {
	segs, err := parsePath(arrayPath, false)
	if err != nil {
		return 0, err
	}
	cur, err := lookup(s.root, segs)
	if err != nil {
		return 0, err
	}
	var arr []any
	switch c := cur.(type) {
	case nil:
	case []any:
		arr = c
	default:
		return 0, fmt.Errorf("%w: %s is not an array", domain.ErrInvalidPath, arrayPath)
	}
	if rec == nil {
		rec = map[string]any{}
	}
	nv, err := normalize(rec)
	if err != nil {
		return 0, err
	}
	arr = append(arr, nv)
	if _, err := assign(s.root, segs, arr); err != nil {
		return 0, err
	}
	return len(arr) - 1, nil
}

func (s *FieldStore) RemoveChild(arrayPath string, index int) error {
	segs, err := parsePath(arrayPath, false)
	if err != nil {
		return err
	}
	cur, err := lookup(s.root, segs)
	if err != nil {
		return err
	}
	arr, ok := cur.([]any)
	if !ok || index < 0 || index >= len(arr) {
		return fmt.Errorf("%w: %s[%d]", domain.ErrInvalidPath, arrayPath, index)
	}
	out := make([]any, 0, len(arr)-1)
	out = append(out, arr[:index]...)
	out = append(out, arr[index+1:]...)
	_, err = assign(s.root, segs, out)
	return err
}

// Values returns a deep copy of the whole tree.
func (s *FieldStore) Values() map[string]any {
	return deepCopy(s.root).(map[string]any)
}

func (s *FieldStore) replace(values map[string]any) error {
	nv, err := normalize(values)
	if err != nil {
		return err
	}
	m, _ := nv.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	s.root = m
	return nil
}

// normalize coerces v into the JSON value space (map[string]any, []any,
// string, float64, bool, nil) so snapshots round-trip exactly.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	return out, nil
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = deepCopy(x)
		}
		return m
	case []any:
		a := make([]any, len(t))
		for i, x := range t {
			a[i] = deepCopy(x)
		}
		return a
	default:
		return v
	}
}
