package provenance

// Unit is classical Datalog: a fact is derived or it is not
type Unit struct{}

// NewUnit returns the unit provenance
func NewUnit() Unit {
	return Unit{}
}

func (Unit) Name() string        { return "unit" }
func (Unit) Zero() bool          { return false }
func (Unit) One() bool           { return true }
func (Unit) Add(a, b bool) bool  { return a || b }
func (Unit) Mult(a, b bool) bool { return a && b }
func (Unit) Negate(tag bool) bool {
	return !tag
}

func (Unit) FromInput(input *InputTag) bool {
	if input != nil && input.Kind == InputBool {
		return input.Bool
	}
	return true
}

func (Unit) Weight(tag bool) float64 {
	if tag {
		return 1
	}
	return 0
}

func (Unit) Equal(a, b bool) bool { return a == b }

func (Unit) Distributive() bool { return true }

func (Unit) Format(tag bool) string {
	if tag {
		return "true"
	}
	return "false"
}
