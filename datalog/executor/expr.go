package executor

import (
	"math"

	"github.com/wbrown/janus-provenance/datalog"
	"github.com/wbrown/janus-provenance/datalog/program"
)

// evalExpr computes an expression against a binding. It fails when a
// foreign function declines its arguments or arithmetic is undefined.
func evalExpr(e program.Expr, binding []datalog.Value) (datalog.Value, bool) {
	switch x := e.(type) {
	case program.SlotExpr:
		v := binding[x.Slot]
		return v, v != nil
	case program.ConstExpr:
		return x.Value, true
	case program.CallExpr:
		args := make([]datalog.Value, len(x.Args))
		for i, a := range x.Args {
			v, ok := evalExpr(a, binding)
			if !ok {
				return nil, false
			}
			args[i] = v
		}
		return x.Function.Execute(args)
	case program.ArithExpr:
		l, ok := evalExpr(x.Left, binding)
		if !ok {
			return nil, false
		}
		r, ok := evalExpr(x.Right, binding)
		if !ok {
			return nil, false
		}
		return arith(x.Op, l, r)
	}
	return nil, false
}

// arith applies op to two values of the same variant. Integers wrap on
// overflow; division and modulo by zero fail. Strings support + as
// concatenation.
func arith(op program.ArithOp, left, right datalog.Value) (datalog.Value, bool) {
	switch l := left.(type) {
	case int8:
		return intArith(op, l, right)
	case int16:
		return intArith(op, l, right)
	case int32:
		return intArith(op, l, right)
	case int64:
		return intArith(op, l, right)
	case uint8:
		return intArith(op, l, right)
	case uint16:
		return intArith(op, l, right)
	case uint32:
		return intArith(op, l, right)
	case uint64:
		return intArith(op, l, right)
	case uint:
		return intArith(op, l, right)
	case float32:
		r, ok := right.(float32)
		if !ok {
			return nil, false
		}
		v, ok := floatArith(op, float64(l), float64(r))
		return float32(v), ok
	case float64:
		r, ok := right.(float64)
		if !ok {
			return nil, false
		}
		return floatArith(op, l, r)
	case string:
		r, ok := right.(string)
		if !ok || op != program.OpAdd {
			return nil, false
		}
		return l + r, true
	}
	return nil, false
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

func intArith[N integer](op program.ArithOp, l N, right datalog.Value) (datalog.Value, bool) {
	r, ok := right.(N)
	if !ok {
		return nil, false
	}
	switch op {
	case program.OpAdd:
		return l + r, true
	case program.OpSub:
		return l - r, true
	case program.OpMul:
		return l * r, true
	case program.OpDiv:
		if r == 0 {
			return nil, false
		}
		return l / r, true
	case program.OpMod:
		if r == 0 {
			return nil, false
		}
		return l % r, true
	}
	return nil, false
}

func floatArith(op program.ArithOp, l, r float64) (float64, bool) {
	var v float64
	switch op {
	case program.OpAdd:
		v = l + r
	case program.OpSub:
		v = l - r
	case program.OpMul:
		v = l * r
	case program.OpDiv:
		if r == 0 {
			return 0, false
		}
		v = l / r
	case program.OpMod:
		if r == 0 {
			return 0, false
		}
		v = math.Mod(l, r)
	default:
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// compare evaluates a comparison. Values of different variants never
// satisfy it.
func compare(op program.CompareOp, left, right datalog.Value) bool {
	c, err := datalog.CompareValues(left, right)
	if err != nil {
		return false
	}
	switch op {
	case program.OpEq:
		return c == 0
	case program.OpNe:
		return c != 0
	case program.OpLt:
		return c < 0
	case program.OpLe:
		return c <= 0
	case program.OpGt:
		return c > 0
	case program.OpGe:
		return c >= 0
	}
	return false
}
