package executor

import (
	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/program"
	"github.com/wbrown/janus-provenance/datalog/provenance"
	"github.com/wbrown/janus-provenance/datalog/storage"
)

type aggKey struct {
	rule int
	step int
}

// aggGroup is one result row of an aggregation: the group values, the
// aggregate and the tag under which it holds
type aggGroup[T any] struct {
	key   datalog.Tuple
	value datalog.Value
	tag   T
}

// aggGroupState collects the distinct bindings of one group. Facts that
// agree on the aggregated variables merge their tags through Add.
type aggGroupState[T any] struct {
	key     datalog.Tuple
	members *datalog.TupleKeyMap
	order   []datalog.Tuple
	tags    []T
}

// aggregate evaluates an aggregation once per stratum. The aggregated
// relation lives in a lower stratum and cannot change while the stratum
// is evaluated.
func (s *stratumRun[T]) aggregate(rule, index int, step program.AggregateStep) []aggGroup[T] {
	s.aggMu.Lock()
	defer s.aggMu.Unlock()

	key := aggKey{rule: rule, step: index}
	if groups, ok := s.aggs[key]; ok {
		return groups
	}
	groups := s.computeAggregate(step)
	if s.aggs == nil {
		s.aggs = make(map[aggKey][]aggGroup[T])
	}
	s.aggs[key] = groups
	return groups
}

func (s *stratumRun[T]) computeAggregate(step program.AggregateStep) []aggGroup[T] {
	prov := s.prov
	states := datalog.NewTupleKeyMap()
	var order []*aggGroupState[T]

	if source := s.db.Relation(step.Relation); source != nil {
		locals := make([]datalog.Value, step.NumLocals)
		source.Each(func(f storage.Fact[T]) bool {
			if !matchLocal(step.Args, f.Tuple, locals) {
				return true
			}
			groupKey := pick(locals, step.Groups)
			member := f.Tuple
			if len(step.Of) > 0 {
				member = pick(locals, step.Of)
			}

			gk := datalog.NewTupleKeyFull(groupKey)
			var st *aggGroupState[T]
			if v, ok := states.Get(gk); ok {
				st = v.(*aggGroupState[T])
			} else {
				st = &aggGroupState[T]{key: groupKey, members: datalog.NewTupleKeyMap()}
				states.Put(gk, st)
				order = append(order, st)
			}

			mk := datalog.NewTupleKeyFull(member)
			if v, ok := st.members.Get(mk); ok {
				i := v.(int)
				st.tags[i] = prov.Add(st.tags[i], f.Tag)
				return true
			}
			st.members.Put(mk, len(st.order))
			st.order = append(st.order, member)
			st.tags = append(st.tags, f.Tag)
			return true
		})
	}

	if len(order) == 0 && len(step.Groups) == 0 {
		switch step.Op {
		case program.AggCount:
			return []aggGroup[T]{{key: datalog.Tuple{}, value: uint(0), tag: prov.One()}}
		case program.AggExists:
			return []aggGroup[T]{{key: datalog.Tuple{}, value: false, tag: prov.One()}}
		}
		return nil
	}

	out := make([]aggGroup[T], 0, len(order))
	for _, st := range order {
		value, ok := aggregateValue(step.Op, st.order)
		if !ok {
			continue
		}
		tag := prov.One()
		if step.Op == program.AggExists {
			tag = prov.Zero()
			for _, t := range st.tags {
				tag = prov.Add(tag, t)
			}
		} else {
			for _, t := range st.tags {
				tag = prov.Mult(tag, t)
			}
		}
		if provenance.IsZero(prov, tag) {
			continue
		}
		out = append(out, aggGroup[T]{key: st.key, value: value, tag: tag})
	}
	return out
}

// aggregateValue folds the distinct members of a group. sum, min and max
// read the first aggregated variable.
func aggregateValue(op program.AggregateOp, members []datalog.Tuple) (datalog.Value, bool) {
	switch op {
	case program.AggCount:
		return uint(len(members)), true
	case program.AggExists:
		return true, true
	}

	var acc datalog.Value
	for _, m := range members {
		if len(m) == 0 {
			return nil, false
		}
		v := m[0]
		if acc == nil {
			acc = v
			continue
		}
		switch op {
		case program.AggSum:
			sum, ok := arith(program.OpAdd, acc, v)
			if !ok {
				return nil, false
			}
			acc = sum
		case program.AggMin, program.AggMax:
			c, err := datalog.CompareValues(v, acc)
			if err != nil {
				return nil, false
			}
			if (op == program.AggMin && c < 0) || (op == program.AggMax && c > 0) {
				acc = v
			}
		default:
			return nil, false
		}
	}
	return acc, acc != nil
}

// matchLocal applies argument modes in an aggregation's local slot space
func matchLocal(args []program.Arg, tuple datalog.Tuple, locals []datalog.Value) bool {
	if len(tuple) != len(args) {
		return false
	}
	for i, a := range args {
		switch a.Mode {
		case program.ArgBind:
			locals[a.Slot] = tuple[i]
		case program.ArgCheck:
			v, ok := evalExpr(a.Expr, locals)
			if !ok || !datalog.ValuesEqual(v, tuple[i]) {
				return false
			}
		}
	}
	return true
}

func pick(values []datalog.Value, slots []int) datalog.Tuple {
	out := make(datalog.Tuple, len(slots))
	for i, s := range slots {
		out[i] = values[s]
	}
	return out
}
