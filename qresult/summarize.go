package qresult

import (
	"math"

	"github.com/duro-db/duro/rel"
)

// AggSpec describes one `summarize` added attribute: its target name, the
// aggregate kind, and (for every kind but count) the per-source-tuple value
// to fold in.
type AggSpec struct {
	Attr  string
	Kind  string // "count", "sum", "avg", "max", "min", "all", "any"
	Value func(tup *rel.Tuple) (rel.Value, error)
}

type aggAcc struct {
	count  int64
	sumI   int64
	sumF   float64
	isInt  bool
	isFloat bool
	max, min rel.Value
	haveMM bool
	all    bool
	any    bool
}

func newAggAcc() *aggAcc { return &aggAcc{all: true, any: false} }

func (a *aggAcc) step(spec AggSpec, tup *rel.Tuple) error {
	a.count++
	if spec.Kind == "count" {
		return nil
	}
	v, err := spec.Value(tup)
	if err != nil {
		return err
	}
	switch spec.Kind {
	case "sum", "avg":
		if v.Kind() == rel.KindFloat {
			a.isFloat = true
			a.sumF += v.Float()
		} else {
			a.isInt = true
			a.sumI += v.Int()
		}
	case "max", "min":
		if !a.haveMM {
			a.max, a.min = v, v
			a.haveMM = true
			return nil
		}
		cur := a.max
		if spec.Kind == "min" {
			cur = a.min
		}
		c, err := v.Compare(cur)
		if err != nil {
			return err
		}
		if (spec.Kind == "max" && c > 0) || (spec.Kind == "min" && c < 0) {
			if spec.Kind == "max" {
				a.max = v
			} else {
				a.min = v
			}
		}
	case "all":
		a.all = a.all && v.Bool()
	case "any":
		a.any = a.any || v.Bool()
	}
	return nil
}

func (a *aggAcc) finalize(spec AggSpec) (rel.Value, error) {
	switch spec.Kind {
	case "count":
		return rel.NewInt(a.count), nil
	case "sum":
		if a.isFloat {
			return rel.NewFloat(a.sumF + float64(a.sumI)), nil
		}
		return rel.NewInt(a.sumI), nil
	case "avg":
		if a.count == 0 {
			return rel.Value{}, rel.ErrAggregateUndefined.New("avg(" + spec.Attr + ")")
		}
		total := a.sumF + float64(a.sumI)
		return rel.NewFloat(total / float64(a.count)), nil
	case "max":
		if !a.haveMM {
			return rel.NewFloat(math.Inf(-1)), nil
		}
		return a.max, nil
	case "min":
		if !a.haveMM {
			return rel.NewFloat(math.Inf(1)), nil
		}
		return a.min, nil
	case "all":
		return rel.NewBool(a.all), nil
	case "any":
		return rel.NewBool(a.any), nil
	}
	return rel.Value{}, rel.ErrInvalidArgument.New("unknown aggregate kind " + spec.Kind)
}

type summarizeEntry struct {
	per  *rel.Tuple
	accs map[string]*aggAcc
}

// summarizeScan finalizes each entry's accumulators lazily, at Next time, so
// an AVG over an empty group raises AGGREGATE_UNDEFINED only when that
// result tuple is actually read, per §4.8.
type summarizeScan struct {
	entries []*summarizeEntry
	specs   []AggSpec
	pos     int
}

func (s *summarizeScan) Next() (*rel.Tuple, error) {
	if s.pos >= len(s.entries) {
		return nil, rel.ErrNotFound.New("end of qresult")
	}
	e := s.entries[s.pos]
	s.pos++
	out := e.per.Copy()
	for _, spec := range s.specs {
		v, err := e.accs[spec.Attr].finalize(spec)
		if err != nil {
			return nil, err
		}
		out.Set(spec.Attr, v)
	}
	return out, nil
}

func (s *summarizeScan) Close() error { return nil }

// Summarize implements the Summarize strategy (§4.8): perTuples (the
// extension of the "per" table) seeds one accumulator group per distinct
// per-projection, source is scanned once to fold each tuple's contribution
// into its group's accumulators via perAttrs, and the result is emitted
// lazily with each group's aggregates finalized at read time.
func Summarize(perTuples []*rel.Tuple, perAttrs []string, source Qresult, specs []AggSpec) (Qresult, error) {
	index := make(map[uint64][]*summarizeEntry)
	entries := make([]*summarizeEntry, 0, len(perTuples))
	for _, per := range perTuples {
		accs := make(map[string]*aggAcc, len(specs))
		for _, spec := range specs {
			accs[spec.Attr] = newAggAcc()
		}
		e := &summarizeEntry{per: per, accs: accs}
		entries = append(entries, e)
		h, err := rel.TupleHash(per, perAttrs)
		if err != nil {
			return nil, err
		}
		index[h] = append(index[h], e)
	}

	defer source.Close()
	for {
		tup, err := source.Next()
		if err != nil {
			if rel.ErrNotFound.Is(err) {
				break
			}
			return nil, err
		}
		proj := tup.Project(perAttrs)
		h, err := rel.TupleHash(proj, perAttrs)
		if err != nil {
			return nil, err
		}
		for _, e := range index[h] {
			eq, err := projectionsEqual(e.per, tup, perAttrs)
			if err != nil {
				return nil, err
			}
			if !eq {
				continue
			}
			for _, spec := range specs {
				if err := e.accs[spec.Attr].step(spec, tup); err != nil {
					return nil, err
				}
			}
			break
		}
	}
	return &summarizeScan{entries: entries, specs: specs}, nil
}
