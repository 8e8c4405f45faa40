package emu

import (
	"fmt"

	"github.com/openreil/reilvm/reil"
)

// ArithErrorKind distinguishes the (currently single) family of arithmetic
// faults the evaluator can raise.
type ArithErrorKind uint8

// DivByZero is raised by I_DIV, I_MOD, I_SDIV and I_SMOD when the divisor
// operand is zero.
const DivByZero ArithErrorKind = iota

// ArithError reports a fault while evaluating an arithmetic/logic opcode.
type ArithError struct {
	Kind ArithErrorKind
	Op   reil.Opcode
}

// Error implements error.
func (e *ArithError) Error() string {
	switch e.Kind {
	case DivByZero:
		return fmt.Sprintf("reil: division by zero evaluating %v", e.Op)
	default:
		return fmt.Sprintf("reil: arithmetic fault evaluating %v", e.Op)
	}
}

// Evaluator evaluates REIL arithmetic/logic opcodes. It is pure and
// stateless: given an opcode, the destination width and the (already
// register-resolved) operand values, it returns the result truncated to the
// destination width, with no access to registers or memory. Unary opcodes
// (I_STR, I_NEG, I_NOT) ignore b.
type Evaluator struct{}

// NewEvaluator creates an Evaluator. It carries no state, but a constructor
// is provided for symmetry with the rest of the execution units and to
// leave room for future configuration (e.g. a strict-overflow mode).
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Eval evaluates op over a (and b, for binary opcodes), producing a value
// truncated to dest. a and b must be AConst operands — resolving registers
// to their current values is the CPU's job, not the evaluator's.
func (e *Evaluator) Eval(op reil.Opcode, dest reil.Width, a, b reil.Operand) (uint64, error) {
	switch op {
	case reil.IStr:
		return dest.Truncate(a.Value), nil

	case reil.IAdd:
		return dest.Truncate(a.Value + b.Value), nil
	case reil.ISub:
		return dest.Truncate(a.Value - b.Value), nil
	case reil.INeg:
		return dest.Truncate(-a.Value), nil
	case reil.IMul:
		return dest.Truncate(a.Value * b.Value), nil

	case reil.IDiv:
		if b.Value == 0 {
			return 0, &ArithError{Kind: DivByZero, Op: op}
		}
		return dest.Truncate(a.Value / b.Value), nil
	case reil.IMod:
		if b.Value == 0 {
			return 0, &ArithError{Kind: DivByZero, Op: op}
		}
		return dest.Truncate(a.Value % b.Value), nil

	case reil.ISmul:
		sa, sb := a.Width.SignExtend(a.Value), b.Width.SignExtend(b.Value)
		return dest.Truncate(uint64(sa * sb)), nil
	case reil.ISdiv:
		if b.Value == 0 {
			return 0, &ArithError{Kind: DivByZero, Op: op}
		}
		sa, sb := a.Width.SignExtend(a.Value), b.Width.SignExtend(b.Value)
		return dest.Truncate(uint64(sa / sb)), nil
	case reil.ISmod:
		if b.Value == 0 {
			return 0, &ArithError{Kind: DivByZero, Op: op}
		}
		sa, sb := a.Width.SignExtend(a.Value), b.Width.SignExtend(b.Value)
		return dest.Truncate(uint64(sa % sb)), nil

	case reil.IShl:
		return dest.Truncate(a.Value << b.Value), nil
	case reil.IShr:
		return dest.Truncate(a.Value >> b.Value), nil

	case reil.IAnd:
		return dest.Truncate(a.Value & b.Value), nil
	case reil.IOr:
		return dest.Truncate(a.Value | b.Value), nil
	case reil.IXor:
		return dest.Truncate(a.Value ^ b.Value), nil
	case reil.INot:
		return dest.Truncate(^a.Value), nil

	case reil.IEq:
		if a.Value == b.Value {
			return 1, nil
		}
		return 0, nil
	case reil.ILt:
		if a.Value < b.Value {
			return 1, nil
		}
		return 0, nil

	default:
		// The CPU only routes opcodes where op.IsArithmetic() holds here;
		// reaching this arm means a caller bypassed that check.
		return 0, fmt.Errorf("reil: %v is not an arithmetic opcode", op)
	}
}
