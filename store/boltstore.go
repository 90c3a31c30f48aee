package store

import (
	"encoding/binary"
	"fmt"

	bolt "github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// metaBucket holds per-recmap metadata (key-field count, index names),
// keyed by recmap name, inside every BoltStore database file.
var metaBucket = []byte("__duro_meta__")

// BoltStore is a durable Store backed by a single github.com/boltdb/bolt
// database file, used for persistent (real) tables. Each recmap is a bolt
// bucket; each secondary index is a separate top-level bucket (named
// <recmap>__idx__<index>) storing encoded index key -> primary key,
// ordered by bolt's native sorted byte keys.
type BoltStore struct {
	db *bolt.DB
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open bolt store")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "init bolt store")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Begin(writable bool) (Tx, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, errors.Wrap(err, "begin bolt tx")
	}
	return &boltTx{tx: tx}, nil
}

type boltTx struct{ tx *bolt.Tx }

func (t *boltTx) ID() string { return fmt.Sprintf("bolt-%p", t.tx) }
func (t *boltTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(err, "commit bolt tx")
	}
	return nil
}
func (t *boltTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return errors.Wrap(err, "rollback bolt tx")
	}
	return nil
}

func boltTxOf(tx Tx) (*bolt.Tx, error) {
	bt, ok := tx.(*boltTx)
	if !ok {
		return nil, errors.New("tx is not a bolt transaction")
	}
	return bt.tx, nil
}

func (s *BoltStore) CreateRecmap(tx Tx, spec RecmapSpec) (Recmap, error) {
	btx, err := boltTxOf(tx)
	if err != nil {
		return nil, err
	}
	if btx.Bucket([]byte(spec.Name)) != nil {
		return nil, errors.Wrapf(ErrKeyExists, "recmap %q", spec.Name)
	}
	if _, err := btx.CreateBucket([]byte(spec.Name)); err != nil {
		return nil, errors.Wrap(err, "create recmap bucket")
	}
	meta := btx.Bucket(metaBucket)
	if err := meta.Put(metaKey(spec.Name), encodeKeyFields(spec.KeyFields)); err != nil {
		return nil, errors.Wrap(err, "write recmap metadata")
	}
	return &boltRecmap{store: s, name: spec.Name, keyFields: spec.KeyFields}, nil
}

func (s *BoltStore) OpenRecmap(tx Tx, name string) (Recmap, error) {
	btx, err := boltTxOf(tx)
	if err != nil {
		return nil, err
	}
	if btx.Bucket([]byte(name)) == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "recmap %q", name)
	}
	meta := btx.Bucket(metaBucket)
	kf := decodeKeyFields(meta.Get(metaKey(name)))
	return &boltRecmap{store: s, name: name, keyFields: kf}, nil
}

func (s *BoltStore) DeleteRecmap(tx Tx, name string) error {
	btx, err := boltTxOf(tx)
	if err != nil {
		return err
	}
	if err := btx.DeleteBucket([]byte(name)); err != nil {
		return errors.Wrapf(ErrRecordNotFound, "recmap %q", name)
	}
	return btx.Bucket(metaBucket).Delete(metaKey(name))
}

func metaKey(name string) []byte { return []byte("keyfields:" + name) }

func encodeKeyFields(n int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(n))
	return b
}

func decodeKeyFields(b []byte) int {
	if len(b) != 4 {
		return 0
	}
	return int(binary.BigEndian.Uint32(b))
}

type boltRecmap struct {
	store     *BoltStore
	name      string
	keyFields int
}

func (r *boltRecmap) Name() string { return r.name }

func encodeRecord(rec Record) []byte {
	var buf []byte
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(rec)))
	buf = append(buf, lb[:]...)
	for _, f := range rec {
		binary.BigEndian.PutUint32(lb[:], uint32(len(f)))
		buf = append(buf, lb[:]...)
		buf = append(buf, f...)
	}
	return buf
}

func decodeRecord(b []byte) Record {
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	rec := make(Record, n)
	for i := range rec {
		l := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		rec[i] = append([]byte(nil), b[:l]...)
		b = b[l:]
	}
	return rec
}

func (r *boltRecmap) Get(tx Tx, key Record) (Record, error) {
	btx, err := boltTxOf(tx)
	if err != nil {
		return nil, err
	}
	b := btx.Bucket([]byte(r.name))
	v := b.Get([]byte(recordKey(key)))
	if v == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "recmap %q", r.name)
	}
	return decodeRecord(v), nil
}

func (r *boltRecmap) Insert(tx Tx, rec Record) error {
	btx, err := boltTxOf(tx)
	if err != nil {
		return err
	}
	b := btx.Bucket([]byte(r.name))
	k := []byte(recordKey(rec[:r.keyFields]))
	if b.Get(k) != nil {
		return errors.Wrapf(ErrKeyExists, "recmap %q", r.name)
	}
	if err := b.Put(k, encodeRecord(rec)); err != nil {
		return errors.Wrap(err, "bolt insert")
	}
	return r.updateIndexes(btx, nil, rec, k)
}

func (r *boltRecmap) Update(tx Tx, key Record, rec Record) error {
	btx, err := boltTxOf(tx)
	if err != nil {
		return err
	}
	b := btx.Bucket([]byte(r.name))
	oldKey := []byte(recordKey(key))
	old := b.Get(oldKey)
	if old == nil {
		return errors.Wrapf(ErrRecordNotFound, "recmap %q", r.name)
	}
	oldRec := decodeRecord(old)
	newKey := []byte(recordKey(rec[:r.keyFields]))
	if string(newKey) != string(oldKey) {
		if err := b.Delete(oldKey); err != nil {
			return errors.Wrap(err, "bolt update delete old key")
		}
	}
	if err := b.Put(newKey, encodeRecord(rec)); err != nil {
		return errors.Wrap(err, "bolt update")
	}
	return r.updateIndexes(btx, oldRec, rec, newKey)
}

func (r *boltRecmap) Delete(tx Tx, key Record) error {
	btx, err := boltTxOf(tx)
	if err != nil {
		return err
	}
	b := btx.Bucket([]byte(r.name))
	k := []byte(recordKey(key))
	v := b.Get(k)
	if v == nil {
		return errors.Wrapf(ErrRecordNotFound, "recmap %q", r.name)
	}
	oldRec := decodeRecord(v)
	if err := b.Delete(k); err != nil {
		return errors.Wrap(err, "bolt delete")
	}
	return r.updateIndexes(btx, oldRec, nil, k)
}

func (r *boltRecmap) indexBucketName(index string) []byte {
	return []byte(r.name + "__idx__" + index)
}

func (r *boltRecmap) CreateIndex(tx Tx, spec IndexSpec) error {
	btx, err := boltTxOf(tx)
	if err != nil {
		return err
	}
	ib, err := btx.CreateBucket(r.indexBucketName(spec.Name))
	if err != nil {
		return errors.Wrapf(err, "create index %q", spec.Name)
	}
	meta := btx.Bucket(metaBucket)
	if err := meta.Put([]byte("idxfields:"+r.name+":"+spec.Name), encodeFieldNos(spec.FieldNos)); err != nil {
		return errors.Wrap(err, "write index metadata")
	}
	b := btx.Bucket([]byte(r.name))
	return b.ForEach(func(k, v []byte) error {
		rec := decodeRecord(v)
		ikey := extractFields(rec, spec.FieldNos)
		return ib.Put([]byte(recordKey(ikey)+"\x00"+string(k)), k)
	})
}

func (r *boltRecmap) OpenIndex(tx Tx, name string) (Recmap, error) {
	btx, err := boltTxOf(tx)
	if err != nil {
		return nil, err
	}
	if btx.Bucket(r.indexBucketName(name)) == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "index %q", name)
	}
	return r, nil
}

func (r *boltRecmap) DeleteIndex(tx Tx, name string) error {
	btx, err := boltTxOf(tx)
	if err != nil {
		return err
	}
	if err := btx.DeleteBucket(r.indexBucketName(name)); err != nil {
		return errors.Wrapf(ErrRecordNotFound, "index %q", name)
	}
	return btx.Bucket(metaBucket).Delete([]byte("idxfields:" + r.name + ":" + name))
}

func (r *boltRecmap) updateIndexes(btx *bolt.Tx, oldRec, newRec Record, pk []byte) error {
	meta := btx.Bucket(metaBucket)
	prefix := []byte("idxfields:" + r.name + ":")
	c := meta.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		name := string(k[len(prefix):])
		fieldNos := decodeFieldNos(v)
		ib := btx.Bucket(r.indexBucketName(name))
		if oldRec != nil {
			ikey := extractFields(oldRec, fieldNos)
			if err := ib.Delete([]byte(recordKey(ikey) + "\x00" + string(pk))); err != nil {
				return errors.Wrap(err, "delete stale index entry")
			}
		}
		if newRec != nil {
			ikey := extractFields(newRec, fieldNos)
			if err := ib.Put([]byte(recordKey(ikey)+"\x00"+string(pk)), pk); err != nil {
				return errors.Wrap(err, "write index entry")
			}
		}
	}
	return nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if b[i] != p {
			return false
		}
	}
	return true
}

func extractFields(rec Record, fieldNos []int) Record {
	out := make(Record, len(fieldNos))
	for i, fn := range fieldNos {
		out[i] = rec[fn]
	}
	return out
}

func encodeFieldNos(nos []int) []byte {
	b := make([]byte, 4*len(nos))
	for i, n := range nos {
		binary.BigEndian.PutUint32(b[i*4:], uint32(n))
	}
	return b
}

func decodeFieldNos(b []byte) []int {
	out := make([]int, len(b)/4)
	for i := range out {
		out[i] = int(binary.BigEndian.Uint32(b[i*4:]))
	}
	return out
}

func (r *boltRecmap) Close() error { return nil }

func (r *boltRecmap) OpenCursor(tx Tx, index string) (Cursor, error) {
	btx, err := boltTxOf(tx)
	if err != nil {
		return nil, err
	}
	if index == "" {
		return &boltCursor{btx: btx, bucket: btx.Bucket([]byte(r.name)), base: r}, nil
	}
	ib := btx.Bucket(r.indexBucketName(index))
	if ib == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "index %q", index)
	}
	return &boltCursor{btx: btx, bucket: btx.Bucket([]byte(r.name)), indexBucket: ib, base: r}, nil
}

// boltCursor wraps a bolt.Cursor; when backed by an index bucket it maps
// index keys to primary-key bytes before reading the base bucket, giving
// ordered traversal for free from bolt's sorted key space.
type boltCursor struct {
	btx         *bolt.Tx
	bucket      *bolt.Bucket
	indexBucket *bolt.Bucket
	base        *boltRecmap
	cur         *bolt.Cursor
	curKey      []byte
	curVal      []byte
}

func (c *boltCursor) src() *bolt.Bucket {
	if c.indexBucket != nil {
		return c.indexBucket
	}
	return c.bucket
}

func (c *boltCursor) First() (bool, error) {
	c.cur = c.src().Cursor()
	c.curKey, c.curVal = c.cur.First()
	return c.curKey != nil, nil
}

func (c *boltCursor) Next() (bool, error) {
	if c.cur == nil {
		return c.First()
	}
	c.curKey, c.curVal = c.cur.Next()
	return c.curKey != nil, nil
}

func (c *boltCursor) Current() (Record, error) {
	if c.curKey == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "cursor on %q", c.base.name)
	}
	if c.indexBucket != nil {
		v := c.bucket.Get(c.curVal)
		if v == nil {
			return nil, errors.Wrapf(ErrRecordNotFound, "recmap %q", c.base.name)
		}
		return decodeRecord(v), nil
	}
	return decodeRecord(c.curVal), nil
}

func (c *boltCursor) Update(rec Record) error {
	cur, err := c.Current()
	if err != nil {
		return err
	}
	return c.base.Update(&boltTx{tx: c.btx}, cur[:c.base.keyFields], rec)
}

func (c *boltCursor) Delete() error {
	cur, err := c.Current()
	if err != nil {
		return err
	}
	return c.base.Delete(&boltTx{tx: c.btx}, cur[:c.base.keyFields])
}

func (c *boltCursor) Close() error { return nil }
