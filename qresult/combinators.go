package qresult

import "github.com/duro-db/duro/rel"

// Predicate evaluates a tuple-level condition, used by Select and Extend's
// guard paths.
type Predicate func(tup *rel.Tuple) (bool, error)

// selectQr implements the Select strategy (§4.8): iterate inner, yield
// tuples where the condition evaluates to TRUE.
type selectQr struct {
	inner Qresult
	cond  Predicate
}

// Select wraps inner so only tuples satisfying cond are yielded.
func Select(inner Qresult, cond Predicate) Qresult {
	return &selectQr{inner: inner, cond: cond}
}

func (s *selectQr) Next() (*rel.Tuple, error) {
	for {
		tup, err := s.inner.Next()
		if err != nil {
			return nil, err
		}
		ok, err := s.cond(tup)
		if err != nil {
			return nil, err
		}
		if ok {
			return tup, nil
		}
	}
}

func (s *selectQr) Close() error { return s.inner.Close() }

// unionQr implements the Union strategy: iterate first then second,
// skipping second's tuples already produced by first (set-union
// semantics), tracked with a tupleSet over the full heading.
type unionQr struct {
	first, second Qresult
	seen          *tupleSet
	onSecond      bool
}

// Union yields first's tuples, then second's tuples not already seen.
// headingNames is the full attribute set of the result, used to dedup.
func Union(first, second Qresult, headingNames []string) Qresult {
	return &unionQr{first: first, second: second, seen: newTupleSet(headingNames)}
}

func (u *unionQr) Next() (*rel.Tuple, error) {
	if !u.onSecond {
		tup, err := u.first.Next()
		if err == nil {
			u.seen.Add(tup)
			return tup, nil
		}
		if !rel.ErrNotFound.Is(err) {
			return nil, err
		}
		u.onSecond = true
	}
	for {
		tup, err := u.second.Next()
		if err != nil {
			return nil, err
		}
		dup, err := u.seen.Contains(tup)
		if err != nil {
			return nil, err
		}
		if !dup {
			return tup, nil
		}
	}
}

func (u *unionQr) Close() error {
	err1 := u.first.Close()
	err2 := u.second.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// minusQr implements Minus: iterate first, skipping tuples present in
// second.
type minusQr struct {
	first, second Qresult
	excluded      *tupleSet
	loaded        bool
}

// Minus yields first's tuples that are not present in second.
func Minus(first, second Qresult, headingNames []string) Qresult {
	return &minusQr{first: first, second: second, excluded: newTupleSet(headingNames)}
}

func (m *minusQr) ensureLoaded() error {
	if m.loaded {
		return nil
	}
	for {
		tup, err := m.second.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				break
			}
			return err
		}
		if err := m.excluded.Add(tup); err != nil {
			return err
		}
	}
	m.loaded = true
	return m.second.Close()
}

func (m *minusQr) Next() (*rel.Tuple, error) {
	if err := m.ensureLoaded(); err != nil {
		return nil, err
	}
	for {
		tup, err := m.first.Next()
		if err != nil {
			return nil, err
		}
		dup, err := m.excluded.Contains(tup)
		if err != nil {
			return nil, err
		}
		if !dup {
			return tup, nil
		}
	}
}

func (m *minusQr) Close() error { return m.first.Close() }

// intersectQr implements Intersect: iterate first, yielding only tuples
// present in second.
type intersectQr struct {
	first, second Qresult
	present       *tupleSet
	loaded        bool
}

// Intersect yields first's tuples that are also present in second.
func Intersect(first, second Qresult, headingNames []string) Qresult {
	return &intersectQr{first: first, second: second, present: newTupleSet(headingNames)}
}

func (x *intersectQr) ensureLoaded() error {
	if x.loaded {
		return nil
	}
	for {
		tup, err := x.second.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				break
			}
			return err
		}
		if err := x.present.Add(tup); err != nil {
			return err
		}
	}
	x.loaded = true
	return x.second.Close()
}

func (x *intersectQr) Next() (*rel.Tuple, error) {
	if err := x.ensureLoaded(); err != nil {
		return nil, err
	}
	for {
		tup, err := x.first.Next()
		if err != nil {
			return nil, err
		}
		ok, err := x.present.Contains(tup)
		if err != nil {
			return nil, err
		}
		if ok {
			return tup, nil
		}
	}
}

func (x *intersectQr) Close() error { return x.first.Close() }

// Semiminus and Semijoin share Minus/Intersect's mechanics but compare only
// the common attribute set rather than the whole heading.
func Semiminus(first, second Qresult, commonAttrs []string) Qresult {
	return Minus(first, second, commonAttrs)
}

func Semijoin(first, second Qresult, commonAttrs []string) Qresult {
	return Intersect(first, second, commonAttrs)
}

// extendQr implements Extend: for each input tuple, evaluate each added
// attribute expression against that tuple (merged with the outer
// environment) and set attributes.
type extendQr struct {
	inner Qresult
	apply func(tup *rel.Tuple) (*rel.Tuple, error)
}

// Extend applies apply (which must return a copy of tup with the extended
// attributes set) to each tuple of inner.
func Extend(inner Qresult, apply func(tup *rel.Tuple) (*rel.Tuple, error)) Qresult {
	return &extendQr{inner: inner, apply: apply}
}

func (e *extendQr) Next() (*rel.Tuple, error) {
	tup, err := e.inner.Next()
	if err != nil {
		return nil, err
	}
	return e.apply(tup)
}

func (e *extendQr) Close() error { return e.inner.Close() }

// renameQr implements Rename: forward each tuple with attributes renamed.
type renameQr struct {
	inner   Qresult
	renames map[string]string
}

// Rename applies the from->to attribute renaming to every tuple of inner.
func Rename(inner Qresult, renames map[string]string) Qresult {
	return &renameQr{inner: inner, renames: renames}
}

func (r *renameQr) Next() (*rel.Tuple, error) {
	tup, err := r.inner.Next()
	if err != nil {
		return nil, err
	}
	nt := tup.Copy()
	for from, to := range r.renames {
		nt.Rename(from, to)
	}
	return nt, nil
}

func (r *renameQr) Close() error { return r.inner.Close() }

// projectQr implements Project: for each input tuple, emit the projection;
// when the projection loses a key (keyloss), dedup against every
// projection already emitted.
type projectQr struct {
	inner    Qresult
	attrs    []string
	dedup    bool
	emitted  *tupleSet
}

// Project yields the projection of each of inner's tuples onto attrs. When
// keyloss is true (no surviving declared key), duplicate projections are
// suppressed via an auxiliary set, matching the all-key temp-table
// behavior described in §4.8.
func Project(inner Qresult, attrs []string, keyloss bool) Qresult {
	p := &projectQr{inner: inner, attrs: attrs, dedup: keyloss}
	if keyloss {
		p.emitted = newTupleSet(attrs)
	}
	return p
}

func (p *projectQr) Next() (*rel.Tuple, error) {
	for {
		tup, err := p.inner.Next()
		if err != nil {
			return nil, err
		}
		proj := tup.Project(p.attrs)
		if !p.dedup {
			return proj, nil
		}
		dup, err := p.emitted.Contains(proj)
		if err != nil {
			return nil, err
		}
		if dup {
			continue
		}
		if err := p.emitted.Add(proj); err != nil {
			return nil, err
		}
		return proj, nil
	}
}

func (p *projectQr) Close() error { return p.inner.Close() }

// joinQr implements Join: nested-loop over (outer, inner); for each outer
// tuple, scan inner and yield the combined tuple for every match on the
// common attribute set. openInner must return a fresh, restartable
// iteration of the inner table (Join needs to rescan it once per outer
// tuple).
type joinQr struct {
	outer      Qresult
	openInner  func() (Qresult, error)
	commonAttrs []string
	cur        *rel.Tuple
	inner      Qresult
}

// Join yields, for every pair of matching tuples from outer and the table
// openInner reopens, their combination. commonAttrs is computed once at
// construction by the caller (relalg), matching §4.8.
func Join(outer Qresult, openInner func() (Qresult, error), commonAttrs []string) Qresult {
	return &joinQr{outer: outer, openInner: openInner, commonAttrs: commonAttrs}
}

func (j *joinQr) Next() (*rel.Tuple, error) {
	for {
		if j.cur == nil {
			outerTup, err := j.outer.Next()
			if err != nil {
				return nil, err
			}
			j.cur = outerTup
			if j.inner != nil {
				j.inner.Close()
			}
			inner, err := j.openInner()
			if err != nil {
				return nil, err
			}
			j.inner = inner
		}
		innerTup, err := j.inner.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				j.cur = nil
				continue
			}
			return nil, err
		}
		ok, err := projectionsEqual(j.cur, innerTup, j.commonAttrs)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		combined := j.cur.Copy()
		for _, n := range innerTup.Names() {
			v, _ := innerTup.Get(n)
			combined.Set(n, v)
		}
		return combined, nil
	}
}

func (j *joinQr) Close() error {
	if j.inner != nil {
		j.inner.Close()
	}
	return j.outer.Close()
}
