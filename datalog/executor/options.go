package executor

// Options controls how the evaluator schedules work
type Options struct {
	// Workers is the number of goroutines evaluating rule tasks of one
	// round. 0 or 1 evaluates sequentially.
	Workers int

	// MaxIterations bounds the number of rounds per stratum. 0 means no
	// bound. Exceeding it fails the run with ErrIterationLimit.
	MaxIterations int
}

// DefaultOptions returns sequential evaluation without an iteration bound
func DefaultOptions() Options {
	return Options{Workers: 1}
}

// Mode selects how a run treats previously derived facts
type Mode uint8

const (
	// ModeFull discards derived facts and recomputes every stratum
	ModeFull Mode = iota
	// ModeIncremental keeps derived facts and propagates only the facts
	// asserted since the previous run
	ModeIncremental
)

func (m Mode) String() string {
	if m == ModeIncremental {
		return "incremental"
	}
	return "full"
}
