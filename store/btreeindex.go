package store

import "github.com/google/btree"

// btreeIndex backs a sorted secondary index with github.com/google/btree,
// giving explicit-ordering reads (table_to_array(T, seq)) an O(log n)
// sorted structure instead of a full sort on every read.
type btreeIndex struct {
	tree *btree.BTree
	less func(a, b Record) bool
}

func newBtreeIndex(less func(a, b Record) bool) *btreeIndex {
	if less == nil {
		less = lexicalLess
	}
	return &btreeIndex{tree: btree.New(32), less: less}
}

func lexicalLess(a, b Record) bool {
	return recordKey(a) < recordKey(b)
}

type indexItem struct {
	key    Record
	rowKey string
	less   func(a, b Record) bool
}

func (it *indexItem) Less(other btree.Item) bool {
	o := other.(*indexItem)
	if it.less(it.key, o.key) {
		return true
	}
	if it.less(o.key, it.key) {
		return false
	}
	return it.rowKey < o.rowKey
}

func (ix *btreeIndex) Insert(key Record, rowKey string) {
	ix.tree.ReplaceOrInsert(&indexItem{key: key, rowKey: rowKey, less: ix.less})
}

func (ix *btreeIndex) Delete(key Record, rowKey string) {
	ix.tree.Delete(&indexItem{key: key, rowKey: rowKey, less: ix.less})
}

// OrderedRowKeys returns every row key in ascending index order.
func (ix *btreeIndex) OrderedRowKeys() []string {
	out := make([]string, 0, ix.tree.Len())
	ix.tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(*indexItem).rowKey)
		return true
	})
	return out
}
