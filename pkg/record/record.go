// Package record models one source API entity exactly as it was received:
// an ordered mapping of field name to untyped scalar.
//
// Field order is kept so that the union of columns derived from a snapshot is
// stable across runs (first appearance wins). Scalars decode to string,
// json.Number, bool or nil; nested objects and arrays are kept verbatim as
// json.RawMessage.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Raw is one source record with its original field order.
type Raw struct {
	keys   []string
	values map[string]any
}

// New returns an empty record.
func New() Raw {
	return Raw{values: make(map[string]any)}
}

// Keys returns field names in their original order.
func (r Raw) Keys() []string { return r.keys }

// Len returns the number of fields.
func (r Raw) Len() int { return len(r.keys) }

// Get returns the value of key and whether the key is present. A present key
// may still hold nil (JSON null).
func (r Raw) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set assigns key, appending it to the field order on first use.
func (r *Raw) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = normalizeValue(v)
}

// ID returns the textual id of the record, or "" if absent.
func (r Raw) ID() string {
	v, ok := r.values["id"]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// normalizeValue maps Go literals used by callers onto the decoded value set.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return json.Number(fmt.Sprint(n))
	case int64:
		return json.Number(fmt.Sprint(n))
	case float64:
		b, _ := json.Marshal(n)
		return json.Number(b)
	default:
		return v
	}
}

// UnmarshalJSON decodes a JSON object while recording key order.
func (r *Raw) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}

	*r = New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected key, got %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		if _, seen := r.values[key]; !seen {
			r.keys = append(r.keys, key)
		}
		r.values[key] = v
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty value")
	}
	switch raw[0] {
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return json.RawMessage(buf.Bytes()), nil
	default:
		var n json.Number
		err := json.Unmarshal(raw, &n)
		return n, err
	}
}

// MarshalJSON encodes the record with its original key order.
func (r Raw) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline
		buf.WriteByte(':')
		if err := enc.Encode(r.values[k]); err != nil {
			return nil, fmt.Errorf("record: field %q: %w", k, err)
		}
		buf.Truncate(buf.Len() - 1)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeArray reads a JSON array of records.
func DecodeArray(r io.Reader) ([]Raw, error) {
	var recs []Raw
	dec := json.NewDecoder(r)
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	if recs == nil {
		return nil, errors.New("record: expected array, got null")
	}
	return recs, nil
}
