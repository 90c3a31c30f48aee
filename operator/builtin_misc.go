package operator

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/duro-db/duro/rel"
)

// RegisterMisc adds the array operators (`length`, `index_of`, `[]`), the
// `tuple`/`array` constructors and `serialize`. The
// `relation` constructor is registered by the table package instead, since
// it must produce a rel.Relation and the table package sits above operator
// in the dependency order (see DESIGN.md).
func RegisterMisc(r *Registry) {
	r.AddReadOnly(&Descriptor{
		Name: "length", ParamCount: 1, ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			if args[0].Kind() != rel.KindArray {
				return rel.Value{}, rel.ErrTypeMismatch.New("length() requires an array")
			}
			return rel.NewInt(int64(args[0].Array().Len())), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "index_of", ParamCount: 2, ReturnType: rel.IntegerType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			if args[0].Kind() != rel.KindArray {
				return rel.Value{}, rel.ErrTypeMismatch.New("index_of() requires an array")
			}
			i, ok := args[0].Array().IndexOf(args[1])
			if !ok {
				return rel.Value{}, rel.ErrNotFound.New("index_of(): element not found")
			}
			return rel.NewInt(int64(i)), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "[]", ParamCount: 2,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			if args[0].Kind() != rel.KindArray {
				return rel.Value{}, rel.ErrTypeMismatch.New("[] requires an array")
			}
			if args[1].Kind() != rel.KindInt {
				return rel.Value{}, rel.ErrTypeMismatch.New("[] subscript must be an integer")
			}
			return args[0].Array().Get(int(args[1].Int()))
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "tuple", ParamCount: -1,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			// Arguments arrive already paired as (name-as-string-Value,
			// value, name-as-string-Value, value, ...).
			converted := make([]interface{}, 0, len(args))
			for i := 0; i < len(args); i += 2 {
				if i+1 >= len(args) {
					return rel.Value{}, rel.ErrInvalidArgument.New("tuple() requires an even number of arguments")
				}
				converted = append(converted, args[i].String(), args[i+1])
			}
			t, err := rel.TupleFrom(converted...)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTuple(t), nil
		},
	})

	r.AddReadOnly(&Descriptor{
		Name: "serialize", ParamCount: 1, ReturnType: rel.BinaryType,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			b, err := SerializeValue(args[0])
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewBinary(b), nil
		},
	})
}

// SerializeValue encodes a scalar value to a self-describing byte sequence.
// Nonscalar values (tuple, array, table) are out of scope for this
// convenience operator, which stays narrowly scoped to one purpose.
func SerializeValue(v rel.Value) ([]byte, error) {
	var buf bytes.Buffer
	switch v.Kind() {
	case rel.KindBool:
		buf.WriteByte(1)
		if v.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case rel.KindInt:
		buf.WriteByte(2)
		binary.Write(&buf, binary.BigEndian, v.Int())
	case rel.KindFloat:
		buf.WriteByte(3)
		binary.Write(&buf, binary.BigEndian, v.Float())
	case rel.KindBinary:
		buf.WriteByte(4)
		binary.Write(&buf, binary.BigEndian, uint32(len(v.Binary())))
		buf.Write(v.Binary())
	default:
		return nil, rel.ErrNotSupported.New(fmt.Sprintf("serialize() of %s", v.Kind()))
	}
	return buf.Bytes(), nil
}
