package reil

import "fmt"

// OperandKind distinguishes the four REIL operand variants.
type OperandKind uint8

// REIL operand kinds.
const (
	ANone OperandKind = iota
	AReg
	ATemp
	AConst
)

// String implements fmt.Stringer.
func (k OperandKind) String() string {
	switch k {
	case ANone:
		return "A_NONE"
	case AReg:
		return "A_REG"
	case ATemp:
		return "A_TEMP"
	case AConst:
		return "A_CONST"
	default:
		return fmt.Sprintf("OperandKind(%d)", uint8(k))
	}
}

// Operand is a tagged union over the four REIL operand variants. Every
// operand carries a width, even None (where the width is meaningless but
// kept for struct uniformity). Register and temp names are case-insensitive
// externally; RegisterFile is responsible for canonicalizing them.
type Operand struct {
	Kind  OperandKind
	Name  string // valid for AReg, ATemp
	Value uint64 // valid for AConst
	Width Width
}

// Reg builds a persistent-register operand.
func Reg(name string, w Width) Operand {
	return Operand{Kind: AReg, Name: name, Width: w}
}

// Temp builds a temporary-register operand.
func Temp(name string, w Width) Operand {
	return Operand{Kind: ATemp, Name: name, Width: w}
}

// Const builds an immediate operand, truncating val to w's width.
func Const(val uint64, w Width) Operand {
	return Operand{Kind: AConst, Value: w.Truncate(val), Width: w}
}

// None builds the absent operand.
func None() Operand {
	return Operand{Kind: ANone}
}

// IsNone reports whether the operand is the absent variant.
func (o Operand) IsNone() bool {
	return o.Kind == ANone
}

// String renders the operand for diagnostics.
func (o Operand) String() string {
	switch o.Kind {
	case AReg:
		return fmt.Sprintf("%s:%v", o.Name, o.Width)
	case ATemp:
		return fmt.Sprintf("%s:%v", o.Name, o.Width)
	case AConst:
		return fmt.Sprintf("0x%x:%v", o.Value, o.Width)
	default:
		return "-"
	}
}
