package rel

import (
	"encoding/binary"
	"fmt"
)

// Type tags for the self-describing binary encoding used in sys_ro_ops,
// sys_upd_ops and sys_tableattrs binary columns. A
// scalar reference is tag+name; a nonscalar is tag+structure, recursing for
// ARRAY and RELATION per original_source/duro/rel/serialize.c (the
// distillation mentions scalars only; the original recurses for every
// constructor, which this carries forward).
const (
	tagScalar = iota + 1
	tagTuple
	tagRelation
	tagArray
)

// TypeResolver looks up a previously-defined scalar type by name, used when
// decoding a scalar reference. Implemented by the catalog's type cache.
type TypeResolver interface {
	ScalarType(name string) (*ScalarType, error)
}

// EncodeType serializes t into the tag+length format.
func EncodeType(t Type) ([]byte, error) {
	switch v := t.(type) {
	case *ScalarType:
		return encodeTagString(tagScalar, v.TypeName), nil
	case *TupleType:
		var buf []byte
		buf = appendUint32(buf, uint32(len(v.Attrs)))
		for _, a := range v.Attrs {
			ab, err := EncodeType(a.Type)
			if err != nil {
				return nil, err
			}
			buf = appendLenBytes(buf, []byte(a.Name))
			buf = appendLenBytes(buf, ab)
		}
		return prependTag(tagTuple, buf), nil
	case *RelationType:
		tb, err := EncodeType(v.Tuple)
		if err != nil {
			return nil, err
		}
		var buf []byte
		buf = appendLenBytes(buf, tb)
		buf = appendUint32(buf, uint32(len(v.Keys)))
		for _, k := range v.Keys {
			buf = appendUint32(buf, uint32(len(k)))
			for _, n := range k {
				buf = appendLenBytes(buf, []byte(n))
			}
		}
		return prependTag(tagRelation, buf), nil
	case *ArrayType:
		bb, err := EncodeType(v.Base)
		if err != nil {
			return nil, err
		}
		return prependTag(tagArray, bb), nil
	default:
		return nil, ErrInternal.New(fmt.Sprintf("cannot encode type %T", t))
	}
}

// DecodeType is the inverse of EncodeType. Scalar references are resolved
// through resolver (the built-ins and any previously-loaded user type).
func DecodeType(b []byte, resolver TypeResolver) (Type, error) {
	t, rest, err := decodeType(b, resolver)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrInternal.New("trailing bytes after type encoding")
	}
	return t, nil
}

func decodeType(b []byte, resolver TypeResolver) (Type, []byte, error) {
	if len(b) < 1 {
		return nil, nil, ErrInternal.New("truncated type encoding")
	}
	tag := b[0]
	b = b[1:]
	switch tag {
	case tagScalar:
		name, rest, err := readLenBytes(b)
		if err != nil {
			return nil, nil, err
		}
		st, err := resolver.ScalarType(string(name))
		if err != nil {
			return nil, nil, err
		}
		return st, rest, nil
	case tagTuple:
		n, rest, err := readUint32(b)
		if err != nil {
			return nil, nil, err
		}
		attrs := make([]Attribute, 0, n)
		for i := uint32(0); i < n; i++ {
			name, r2, err := readLenBytes(rest)
			if err != nil {
				return nil, nil, err
			}
			ab, r3, err := readLenBytes(r2)
			if err != nil {
				return nil, nil, err
			}
			at, err := DecodeType(ab, resolver)
			if err != nil {
				return nil, nil, err
			}
			attrs = append(attrs, Attribute{Name: string(name), Type: at})
			rest = r3
		}
		return &TupleType{Attrs: attrs}, rest, nil
	case tagRelation:
		tb, rest, err := readLenBytes(b)
		if err != nil {
			return nil, nil, err
		}
		tt, err := DecodeType(tb, resolver)
		if err != nil {
			return nil, nil, err
		}
		nk, rest2, err := readUint32(rest)
		if err != nil {
			return nil, nil, err
		}
		keys := make([]Key, 0, nk)
		for i := uint32(0); i < nk; i++ {
			na, r2, err := readUint32(rest2)
			if err != nil {
				return nil, nil, err
			}
			rest2 = r2
			k := make(Key, 0, na)
			for j := uint32(0); j < na; j++ {
				name, r3, err := readLenBytes(rest2)
				if err != nil {
					return nil, nil, err
				}
				k = append(k, string(name))
				rest2 = r3
			}
			keys = append(keys, k)
		}
		return &RelationType{Tuple: tt.(*TupleType), Keys: keys}, rest2, nil
	case tagArray:
		bt, rest, err := decodeType(b, resolver)
		if err != nil {
			return nil, nil, err
		}
		return &ArrayType{Base: bt}, rest, nil
	default:
		return nil, nil, ErrInternal.New(fmt.Sprintf("unknown type tag %d", tag))
	}
}

func encodeTagString(tag byte, s string) []byte {
	return prependTag(tag, appendLenBytes(nil, []byte(s)))
}

func prependTag(tag byte, b []byte) []byte {
	return append([]byte{tag}, b...)
}

func appendLenBytes(buf, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func readLenBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := readUint32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, ErrInternal.New("truncated type encoding")
	}
	return rest[:n], rest[n:], nil
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func readUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, ErrInternal.New("truncated type encoding")
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}
