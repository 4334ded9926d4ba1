package model

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Extensions 开放字段, 值为 string, number, bool, 嵌套 map 或数组.
type Extensions map[string]any

// reservedKeys 与固定字段同名的 key 不能作为扩展字段.
var reservedKeys = map[string]struct{}{
	"_id":              {},
	"__v":              {},
	"id":               {},
	"identifier":       {},
	"linear_id":        {},
	"title":            {},
	"description":      {},
	"status":           {},
	"priority":         {},
	"comments":         {},
	"contextualChange": {},
	"createdAt":        {},
	"updatedAt":        {},
}

// IsReservedKey reports whether key names a typed ticket field.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Validate rejects keys that would collide with typed fields or be
// interpreted as update operators or dotted paths by the document store.
func (e Extensions) Validate() error {
	for k := range e {
		switch {
		case k == "":
			return fmt.Errorf("%w: empty extension key", ErrInvalidTicket)
		case IsReservedKey(k):
			return fmt.Errorf("%w: extension key %q is reserved", ErrInvalidTicket, k)
		case strings.HasPrefix(k, "$"), strings.Contains(k, "."):
			return fmt.Errorf("%w: extension key %q may not start with '$' or contain '.'", ErrInvalidTicket, k)
		}
	}
	return nil
}

// Merge returns the union of e and patch; keys in patch win.
func (e Extensions) Merge(patch Extensions) Extensions {
	if len(e) == 0 && len(patch) == 0 {
		return nil
	}
	out := make(Extensions, len(e)+len(patch))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns a deep copy.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

// ExtensionValueEqual compares two extension values structurally. Numeric values compare
// by float64 so that values round-tripped through BSON or JSON stay equal.
func ExtensionValueEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	am, aok := asMap(a)
	bm, bok := asMap(b)
	if aok || bok {
		if !aok || !bok || len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			w, ok := bm[k]
			if !ok || !ExtensionValueEqual(v, w) {
				return false
			}
		}
		return true
	}
	as, aok := asSlice(a)
	bs, bok := asSlice(b)
	if aok || bok {
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !ExtensionValueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func cloneValue(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[k] = cloneValue(x)
		}
		return out
	}
	if s, ok := asSlice(v); ok {
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = cloneValue(x)
		}
		return out
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case primitive.M:
		return m, true
	case Extensions:
		return m, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case primitive.A:
		return s, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
