// Package table implements the table model: real (stored) tables, virtual
// (expression-backed) tables, and public tables whose defining expression is
// supplied later by a map operation. It also registers the `relation`
// constructor operator, kept here rather than in operator to avoid that
// package depending on table.
package table

import (
	"encoding/binary"
	"math"

	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/store"
)

// encodeValue serializes v to bytes for physical storage, recursing through
// tuples/arrays and through a user-defined scalar's arep.
func encodeValue(v rel.Value) []byte {
	switch v.Kind() {
	case rel.KindBool:
		if v.Bool() {
			return []byte{1}
		}
		return []byte{0}
	case rel.KindInt:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v.Int()))
		return b
	case rel.KindFloat:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v.Float()))
		return b
	case rel.KindBinary:
		return lenPrefixed(v.Binary())
	case rel.KindTuple:
		tt := v.Type().(*rel.TupleType)
		var out []byte
		for _, a := range tt.Attrs {
			cv, _ := v.Tuple().Get(a.Name)
			out = append(out, encodeValue(cv)...)
		}
		return out
	case rel.KindArray:
		var out []byte
		lb := make([]byte, 4)
		binary.BigEndian.PutUint32(lb, uint32(v.Array().Len()))
		out = append(out, lb...)
		for i := 0; i < v.Array().Len(); i++ {
			ev, _ := v.Array().Get(i)
			out = append(out, encodeValue(ev)...)
		}
		return out
	}
	if st, ok := v.Type().(*rel.ScalarType); ok && !rel.Builtin(st) {
		return encodeValue(v.Arep())
	}
	return nil
}

func lenPrefixed(b []byte) []byte {
	lb := make([]byte, 4)
	binary.BigEndian.PutUint32(lb, uint32(len(b)))
	return append(lb, b...)
}

// decodeValue reconstructs a value of type t from b, returning the number of
// bytes consumed.
func decodeValue(b []byte, t rel.Type) (rel.Value, int, error) {
	switch tt := t.(type) {
	case *rel.ScalarType:
		switch {
		case tt == rel.BooleanType:
			return rel.NewBool(b[0] != 0), 1, nil
		case tt == rel.IntegerType:
			return rel.NewInt(int64(binary.BigEndian.Uint64(b[:8]))), 8, nil
		case tt == rel.FloatType:
			return rel.NewFloat(math.Float64frombits(binary.BigEndian.Uint64(b[:8]))), 8, nil
		case tt == rel.StringType:
			n := binary.BigEndian.Uint32(b[:4])
			return rel.NewString(string(b[4 : 4+n])), int(4 + n), nil
		case tt == rel.BinaryType:
			n := binary.BigEndian.Uint32(b[:4])
			return rel.NewBinary(b[4 : 4+n]), int(4 + n), nil
		default:
			arep, n, err := decodeValue(b, tt.Arep)
			if err != nil {
				return rel.Value{}, 0, err
			}
			v, err := rel.NewScalar(tt, arep)
			if err != nil {
				return rel.Value{}, 0, err
			}
			return v, n, nil
		}
	case *rel.TupleType:
		tup := rel.NewEmptyTuple()
		total := 0
		for _, a := range tt.Attrs {
			v, n, err := decodeValue(b[total:], a.Type)
			if err != nil {
				return rel.Value{}, 0, err
			}
			tup.Set(a.Name, v)
			total += n
		}
		return rel.NewTupleTyped(tup, tt), total, nil
	case *rel.ArrayType:
		n := int(binary.BigEndian.Uint32(b[:4]))
		total := 4
		arr := rel.NewArrayOf(tt.Base)
		for i := 0; i < n; i++ {
			ev, consumed, err := decodeValue(b[total:], tt.Base)
			if err != nil {
				return rel.Value{}, 0, err
			}
			if err := arr.Insert(i, ev); err != nil {
				return rel.Value{}, 0, err
			}
			total += consumed
		}
		return rel.NewArray(arr, tt), total, nil
	}
	return rel.Value{}, 0, rel.ErrNotSupported.New("decode of " + t.String())
}

// rowFields converts a tuple into store fields ordered as keyAttrs followed
// by the remaining attributes in tuple-type order, matching the record
// store's primary-key-fields-first contract.
func rowFields(tup *rel.Tuple, tt *rel.TupleType, keyAttrs []string) store.Record {
	keySet := make(map[string]bool, len(keyAttrs))
	for _, k := range keyAttrs {
		keySet[k] = true
	}
	rec := make(store.Record, 0, len(tt.Attrs))
	for _, name := range keyAttrs {
		v, _ := tup.Get(name)
		rec = append(rec, encodeValue(v))
	}
	for _, a := range tt.Attrs {
		if keySet[a.Name] {
			continue
		}
		v, _ := tup.Get(a.Name)
		rec = append(rec, encodeValue(v))
	}
	return rec
}

// fieldOrder returns the attribute names in the physical field order
// rowFields uses: key attributes first, then the rest in type order.
func fieldOrder(tt *rel.TupleType, keyAttrs []string) []string {
	keySet := make(map[string]bool, len(keyAttrs))
	for _, k := range keyAttrs {
		keySet[k] = true
	}
	order := append([]string(nil), keyAttrs...)
	for _, a := range tt.Attrs {
		if !keySet[a.Name] {
			order = append(order, a.Name)
		}
	}
	return order
}

func rowToTuple(rec store.Record, tt *rel.TupleType, order []string) (*rel.Tuple, error) {
	typeByName := make(map[string]rel.Type, len(tt.Attrs))
	for _, a := range tt.Attrs {
		typeByName[a.Name] = a.Type
	}
	tup := rel.NewEmptyTuple()
	for i, name := range order {
		v, _, err := decodeValue(rec[i], typeByName[name])
		if err != nil {
			return nil, err
		}
		tup.Set(name, v)
	}
	return tup, nil
}
