package table

import (
	"encoding/json"
	"strconv"

	"github.com/lucasllimati/Projeto-AB-InBev/pkg/record"
)

// FromRecords flattens raw records into a table. The column set is the union
// of keys in order of first appearance; records lacking a key get null.
// Each column's kind is inferred from every non-null value it holds:
// integers only -> int, any fractional/exponent number mixed with numbers ->
// float, booleans only -> bool, anything else (or all null) -> string.
// Nested objects and arrays are kept as compact JSON text.
func FromRecords(recs []record.Raw) Table {
	var names []string
	index := make(map[string]int)
	for _, r := range recs {
		for _, k := range r.Keys() {
			if _, ok := index[k]; !ok {
				index[k] = len(names)
				names = append(names, k)
			}
		}
	}

	kinds := make([]Kind, len(names))
	for i, name := range names {
		kinds[i] = inferKind(recs, name)
	}

	t := Table{Schema: Schema{Columns: make([]Column, len(names))}}
	for i, name := range names {
		t.Schema.Columns[i] = Column{Name: name, Kind: kinds[i]}
	}

	t.Rows = make([]Row, len(recs))
	for ri, r := range recs {
		row := make(Row, len(names))
		for ci, name := range names {
			v, ok := r.Get(name)
			if !ok {
				continue
			}
			row[ci] = coerce(v, kinds[ci])
		}
		t.Rows[ri] = row
	}
	return t
}

type seenKinds struct {
	ints, floats, bools, other bool
}

func inferKind(recs []record.Raw, name string) Kind {
	var s seenKinds
	for _, r := range recs {
		v, ok := r.Get(name)
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			if _, err := n.Int64(); err == nil {
				s.ints = true
			} else {
				s.floats = true
			}
		case bool:
			s.bools = true
		default:
			s.other = true
		}
	}

	switch {
	case s.other:
		return KindString
	case s.bools && (s.ints || s.floats):
		return KindString
	case s.bools:
		return KindBool
	case s.floats:
		return KindFloat
	case s.ints:
		return KindInt
	default:
		return KindString
	}
}

func coerce(v any, kind Kind) any {
	switch kind {
	case KindInt:
		if n, ok := v.(json.Number); ok {
			i, _ := n.Int64()
			return i
		}
	case KindFloat:
		if n, ok := v.(json.Number); ok {
			f, _ := n.Float64()
			return f
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return toText(v)
}

func toText(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case json.RawMessage:
		return string(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil
		}
		return string(b)
	}
}
