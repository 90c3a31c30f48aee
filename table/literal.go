package table

import (
	"github.com/duro-db/duro/operator"
	"github.com/duro-db/duro/rel"
)

// LiteralRelation is an in-memory relation value with no catalog identity,
// produced by the `relation` constructor and by every relational operator
// that returns a fresh derived value (project, union, ...). It holds its
// extension directly rather than through a store.Recmap.
type LiteralRelation struct {
	relType *rel.RelationType
	keys    []rel.Key
	tuples  []*rel.Tuple
}

// NewLiteralRelation builds a literal relation with the given heading and
// keys, deduplicating tuples against each other.
func NewLiteralRelation(relType *rel.RelationType, keys []rel.Key, tuples []*rel.Tuple) (*LiteralRelation, error) {
	lr := &LiteralRelation{relType: relType, keys: keys}
	for _, t := range tuples {
		if err := lr.insertDedup(t); err != nil {
			return nil, err
		}
	}
	return lr, nil
}

func (lr *LiteralRelation) insertDedup(t *rel.Tuple) error {
	for _, existing := range lr.tuples {
		eq, err := existing.Equal(t)
		if err != nil {
			return err
		}
		if eq {
			return nil
		}
	}
	lr.tuples = append(lr.tuples, t)
	return nil
}

func (lr *LiteralRelation) RelType() *rel.RelationType { return lr.relType }
func (lr *LiteralRelation) Name() string               { return "" }
func (lr *LiteralRelation) IsPersistent() bool         { return false }
func (lr *LiteralRelation) IsVirtual() bool            { return true }
func (lr *LiteralRelation) Keys() []rel.Key            { return lr.keys }

// Tuples returns the relation's extension. Callers must not mutate the
// returned slice.
func (lr *LiteralRelation) Tuples() []*rel.Tuple { return lr.tuples }

// allAttributesKey builds the default candidate key used when a relation
// value constructor is not given an explicit key: the full set of
// attributes.
func allAttributesKey(tt *rel.TupleType) rel.Key {
	return rel.Key(tt.AttrNames())
}

// RegisterConstructor adds the `relation` constructor to r. Its first
// argument is a tuple value giving the relation's heading; the remaining
// arguments are tuples of that same type to populate the extension with,
// duplicates silently collapsing per the usual relational set semantics.
func RegisterConstructor(r *operator.Registry) {
	r.AddReadOnly(&operator.Descriptor{
		Name: "relation", ParamCount: -1,
		Fn: func(env rel.Env, args []rel.Value) (rel.Value, error) {
			if len(args) == 0 {
				return rel.Value{}, rel.ErrInvalidArgument.New("relation() requires a heading tuple")
			}
			if args[0].Kind() != rel.KindTuple {
				return rel.Value{}, rel.ErrTypeMismatch.New("relation() heading must be a tuple")
			}
			tt := args[0].Type().(*rel.TupleType)
			relType := rel.NewRelationType(tt, []rel.Key{allAttributesKey(tt)})

			tuples := make([]*rel.Tuple, 0, len(args))
			for _, a := range args[1:] {
				if a.Kind() != rel.KindTuple {
					return rel.Value{}, rel.ErrTypeMismatch.New("relation() arguments must all be tuples")
				}
				if !a.Type().Equal(tt) {
					return rel.Value{}, rel.ErrTypeMismatch.New("relation() arguments must share one heading")
				}
				tuples = append(tuples, a.Tuple())
			}
			lr, err := NewLiteralRelation(relType, relType.Keys, tuples)
			if err != nil {
				return rel.Value{}, err
			}
			return rel.NewTable(lr), nil
		},
	})
}
