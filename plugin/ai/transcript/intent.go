package transcript

import (
	"fmt"
	"sort"
	"strings"
)

// IntentKey is the discriminator field. It is never user editable.
const IntentKey = "intent"

// IntentData is the backend's structured reading of an utterance.
// Values are scalars or lists.
type IntentData map[string]any

// Intent returns the discriminator, or "" when absent.
func (d IntentData) Intent() string {
	if d == nil {
		return ""
	}
	s, _ := d[IntentKey].(string)
	return s
}

// Clone returns a deep copy. Lists are copied so edits to the copy never
// reach the original.
func (d IntentData) Clone() IntentData {
	if d == nil {
		return nil
	}
	out := make(IntentData, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		return map[string]any(IntentData(t).Clone())
	default:
		return v
	}
}

// Keys returns the field names in display order: intent first, the rest sorted.
func (d IntentData) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		if k != IntentKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := d[IntentKey]; ok {
		keys = append([]string{IntentKey}, keys...)
	}
	return keys
}

// IsList reports whether the value is list-typed.
func IsList(v any) bool {
	switch v.(type) {
	case []string, []any:
		return true
	}
	return false
}

// ListSeparator joins list values for editing.
const ListSeparator = ", "

// FieldText renders a value as editable text.
func FieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ListSeparator)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, FieldText(item))
		}
		return strings.Join(parts, ListSeparator)
	default:
		return fmt.Sprint(t)
	}
}

// SplitList turns edited list text back into a list, dropping empty entries.
func SplitList(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
