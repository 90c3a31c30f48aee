package store

import (
	"sync"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// MemStore is a transient, in-process Store, used for non-persistent
// tables and for tests. It holds every recmap in memory; nothing survives
// process exit. Mutations apply immediately, so Commit/Rollback on its Tx
// are no-ops.
type MemStore struct {
	mu      sync.Mutex
	recmaps map[string]*memRecmap
}

func NewMemStore() *MemStore {
	return &MemStore{recmaps: make(map[string]*memRecmap)}
}

func (s *MemStore) Begin(writable bool) (Tx, error) {
	return &memTx{id: uuid.NewV4().String()}, nil
}

type memTx struct{ id string }

func (t *memTx) ID() string      { return t.id }
func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

func (s *MemStore) CreateRecmap(tx Tx, spec RecmapSpec) (Recmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recmaps[spec.Name]; ok {
		return nil, errors.Wrapf(ErrKeyExists, "recmap %q", spec.Name)
	}
	rm := &memRecmap{
		name:    spec.Name,
		spec:    spec,
		rows:    make(map[string]Record),
		indexes: make(map[string]*memIndex),
	}
	s.recmaps[spec.Name] = rm
	return rm, nil
}

func (s *MemStore) OpenRecmap(tx Tx, name string) (Recmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.recmaps[name]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "recmap %q", name)
	}
	return rm, nil
}

func (s *MemStore) DeleteRecmap(tx Tx, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recmaps[name]; !ok {
		return errors.Wrapf(ErrRecordNotFound, "recmap %q", name)
	}
	delete(s.recmaps, name)
	return nil
}

func (s *MemStore) Close() error { return nil }

type memRecmap struct {
	mu      sync.RWMutex
	name    string
	spec    RecmapSpec
	rows    map[string]Record
	order   []string // insertion order, for deterministic full scans
	indexes map[string]*memIndex
}

type memIndex struct {
	spec IndexSpec
	keys *btreeIndex
}

func keyOf(rec Record, spec RecmapSpec) string {
	return recordKey(rec[:spec.KeyFields])
}

func recordKey(fields Record) string {
	var b []byte
	for _, f := range fields {
		var lb [4]byte
		l := len(f)
		lb[0] = byte(l)
		lb[1] = byte(l >> 8)
		lb[2] = byte(l >> 16)
		lb[3] = byte(l >> 24)
		b = append(b, lb[:]...)
		b = append(b, f...)
	}
	return string(b)
}

func (m *memRecmap) Name() string { return m.name }

func (m *memRecmap) Get(tx Tx, key Record) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rows[recordKey(key)]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "recmap %q", m.name)
	}
	return rec, nil
}

func (m *memRecmap) Insert(tx Tx, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(rec, m.spec)
	if _, ok := m.rows[k]; ok {
		return errors.Wrapf(ErrKeyExists, "recmap %q", m.name)
	}
	m.rows[k] = rec
	m.order = append(m.order, k)
	for _, ix := range m.indexes {
		ix.keys.Insert(ix.extract(rec), k)
	}
	return nil
}

func (m *memRecmap) Update(tx Tx, key Record, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recordKey(key)
	old, ok := m.rows[k]
	if !ok {
		return errors.Wrapf(ErrRecordNotFound, "recmap %q", m.name)
	}
	newKey := keyOf(rec, m.spec)
	for _, ix := range m.indexes {
		ix.keys.Delete(ix.extract(old), k)
	}
	if newKey != k {
		delete(m.rows, k)
		for i, existing := range m.order {
			if existing == k {
				m.order[i] = newKey
				break
			}
		}
		k = newKey
	}
	m.rows[k] = rec
	for _, ix := range m.indexes {
		ix.keys.Insert(ix.extract(rec), k)
	}
	return nil
}

func (m *memRecmap) Delete(tx Tx, key Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := recordKey(key)
	rec, ok := m.rows[k]
	if !ok {
		return errors.Wrapf(ErrRecordNotFound, "recmap %q", m.name)
	}
	delete(m.rows, k)
	for i, existing := range m.order {
		if existing == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for _, ix := range m.indexes {
		ix.keys.Delete(ix.extract(rec), k)
	}
	return nil
}

func (m *memRecmap) CreateIndex(tx Tx, spec IndexSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[spec.Name]; ok {
		return errors.Wrapf(ErrKeyExists, "index %q", spec.Name)
	}
	ix := &memIndex{spec: spec, keys: newBtreeIndex(spec.Less)}
	for _, k := range m.order {
		ix.keys.Insert(ix.extract(m.rows[k]), k)
	}
	m.indexes[spec.Name] = ix
	return nil
}

func (m *memRecmap) OpenIndex(tx Tx, name string) (Recmap, error) {
	m.mu.RLock()
	_, ok := m.indexes[name]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "index %q", name)
	}
	return m, nil
}

func (m *memRecmap) DeleteIndex(tx Tx, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[name]; !ok {
		return errors.Wrapf(ErrRecordNotFound, "index %q", name)
	}
	delete(m.indexes, name)
	return nil
}

func (ix *memIndex) extract(rec Record) Record {
	fields := make(Record, len(ix.spec.FieldNos))
	for i, fn := range ix.spec.FieldNos {
		fields[i] = rec[fn]
	}
	return fields
}

func (m *memRecmap) Close() error { return nil }

func (m *memRecmap) OpenCursor(tx Tx, index string) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if index == "" {
		keys := append([]string(nil), m.order...)
		return &memCursor{rm: m, keys: keys, pos: -1}, nil
	}
	ix, ok := m.indexes[index]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "index %q", index)
	}
	keys := ix.keys.OrderedRowKeys()
	return &memCursor{rm: m, keys: keys, pos: -1}, nil
}

type memCursor struct {
	rm   *memRecmap
	keys []string
	pos  int
}

func (c *memCursor) First() (bool, error) {
	c.pos = 0
	return c.pos < len(c.keys), nil
}

func (c *memCursor) Next() (bool, error) {
	c.pos++
	return c.pos < len(c.keys), nil
}

func (c *memCursor) Current() (Record, error) {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil, errors.Wrapf(ErrRecordNotFound, "cursor on %q", c.rm.name)
	}
	c.rm.mu.RLock()
	defer c.rm.mu.RUnlock()
	rec, ok := c.rm.rows[c.keys[c.pos]]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "cursor on %q", c.rm.name)
	}
	return rec, nil
}

func (c *memCursor) Update(rec Record) error {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return errors.Wrapf(ErrRecordNotFound, "cursor on %q", c.rm.name)
	}
	c.rm.mu.Lock()
	old := c.rm.rows[c.keys[c.pos]]
	c.rm.mu.Unlock()
	return c.rm.Update(nil, old[:c.rm.spec.KeyFields], rec)
}

func (c *memCursor) Delete() error {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return errors.Wrapf(ErrRecordNotFound, "cursor on %q", c.rm.name)
	}
	c.rm.mu.Lock()
	old := c.rm.rows[c.keys[c.pos]]
	c.rm.mu.Unlock()
	return c.rm.Delete(nil, old[:c.rm.spec.KeyFields])
}

func (c *memCursor) Close() error { return nil }
