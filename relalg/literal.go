package relalg

import (
	"github.com/duro-db/duro/rel"
	"github.com/duro-db/duro/table"
)

// newLiteralRelation adapts table.NewLiteralRelation to the
// (relType, tuples) -> rel.Relation shape qresult.Group needs to build a
// nested relation value without importing table itself.
func newLiteralRelation(relType *rel.RelationType, tuples []*rel.Tuple) (rel.Relation, error) {
	return table.NewLiteralRelation(relType, relType.Keys, tuples)
}
