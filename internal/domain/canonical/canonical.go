// Package canonical renders JSON-like values into a byte-stable form and
// derives the content-addressed keys the cache layer is built on. Two values
// that are deep-equal up to object key order produce identical output. Object
// entries with nil values are omitted, the way undefined fields vanish from
// standard JSON encoding; nil array elements stay significant and render as
// null.
package canonical

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Marshal renders v into its canonical string form.
func Marshal(v any) (string, error) {
	n, err := normalize(v)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := render(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

// normalize reduces v to generic JSON form (maps, slices, float64, string,
// bool, nil) via an encode/decode round trip, so arbitrary Go values render
// exactly as their wire representation would.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanonicalize, err)
	}
	var n any
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanonicalize, err)
	}
	return n, nil
}

func render(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k, entry := range t {
			// Nil-valued entries are identity-neutral and disappear.
			if entry == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeScalar(b, k); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := render(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, entry := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := render(b, entry); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	default:
		return writeScalar(b, t)
	}
	return nil
}

// writeScalar encodes strings, bools, and numbers with encoding/json so the
// output matches standard JSON byte for byte.
func writeScalar(b *strings.Builder, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCanonicalize, err)
	}
	b.Write(raw)
	return nil
}
