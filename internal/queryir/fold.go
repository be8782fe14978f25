package queryir

// Conjoin ANDs predicates with constant folding: true operands drop, any
// false operand makes the result false, nested Ands are flattened, and a
// single survivor is returned unwrapped. No operands yields true.
func Conjoin(ps ...Predicate) Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		switch n := p.(type) {
		case nil:
			continue
		case Const:
			if !n.Value {
				return Const{Value: false}
			}
			continue
		case And:
			out = append(out, n.Predicates...)
			continue
		}
		out = append(out, p)
	}
	switch len(out) {
	case 0:
		return Const{Value: true}
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}

// Disjoin ORs predicates with constant folding: false operands drop, any
// true operand makes the result true. No operands yields false.
func Disjoin(ps ...Predicate) Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		switch n := p.(type) {
		case nil:
			continue
		case Const:
			if n.Value {
				return Const{Value: true}
			}
			continue
		case AnyOf:
			out = append(out, n.Predicates...)
			continue
		}
		out = append(out, p)
	}
	switch len(out) {
	case 0:
		return Const{Value: false}
	case 1:
		return out[0]
	default:
		return AnyOf{Predicates: out}
	}
}

// Negate wraps p in Not, folding constants and double negation.
func Negate(p Predicate) Predicate {
	switch n := p.(type) {
	case Const:
		return Const{Value: !n.Value}
	case Not:
		return n.Predicate
	default:
		return Not{Predicate: p}
	}
}
