package store

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMemStoreInsertGetDelete(t *testing.T) {
	require := require.New(t)
	s := NewMemStore()
	tx, err := s.Begin(true)
	require.NoError(err)

	rm, err := s.CreateRecmap(tx, RecmapSpec{Name: "EMPS", FieldLens: []int{8, FieldLen}, KeyFields: 1})
	require.NoError(err)

	require.NoError(rm.Insert(tx, Record{[]byte{1}, []byte("Alice")}))
	_, err = rm.Get(tx, Record{[]byte{1}})
	require.NoError(err)

	err = rm.Insert(tx, Record{[]byte{1}, []byte("Bob")})
	require.Error(err)
	require.Equal(ErrKeyExists, errors.Cause(err))

	require.NoError(rm.Delete(tx, Record{[]byte{1}}))
	_, err = rm.Get(tx, Record{[]byte{1}})
	require.Error(err)
}

func TestMemStoreCursorAndIndex(t *testing.T) {
	require := require.New(t)
	s := NewMemStore()
	tx, _ := s.Begin(true)
	rm, err := s.CreateRecmap(tx, RecmapSpec{Name: "T", FieldLens: []int{8, 8}, KeyFields: 1})
	require.NoError(err)

	require.NoError(rm.Insert(tx, Record{[]byte{3}, []byte{30}}))
	require.NoError(rm.Insert(tx, Record{[]byte{1}, []byte{10}}))
	require.NoError(rm.Insert(tx, Record{[]byte{2}, []byte{20}}))

	require.NoError(rm.CreateIndex(tx, IndexSpec{
		Name: "byfield2", FieldNos: []int{1},
		Less: func(a, b Record) bool { return string(a[0]) < string(b[0]) },
	}))

	cur, err := rm.OpenCursor(tx, "byfield2")
	require.NoError(err)
	ok, err := cur.First()
	require.NoError(err)
	var seen []byte
	for ok {
		rec, err := cur.Current()
		require.NoError(err)
		seen = append(seen, rec[1][0])
		ok, err = cur.Next()
		require.NoError(err)
	}
	require.Equal([]byte{10, 20, 30}, seen)
}
