package program

import "errors"

// Compile errors. They are reported before any evaluation happens.
var (
	ErrUnknownRelation     = errors.New("unknown relation")
	ErrDuplicateRelation   = errors.New("relation already declared")
	ErrArityMismatch       = errors.New("arity mismatch")
	ErrUnknownForeign      = errors.New("unknown foreign function or predicate")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrUnboundVariable     = errors.New("unbound variable")
	ErrUnstratifiable      = errors.New("program is not stratifiable")
	ErrNegationUnsupported = errors.New("provenance does not support negation")
	ErrInvalidRule         = errors.New("invalid rule")
)
