package vm

import (
	"fmt"
	"math"
)

// CompiledLambda is the static result of compiling one lambda body.
//
// Names holds the argument names followed by the names of local defines in
// declaration order, so len(Names) == ArgCount+VarCount. A compiled lambda
// is not modified once its compilation has finished.
type CompiledLambda struct {
	Code     []Instruction
	Literals []Atom
	ArgCount int
	VarCount int
	Names    []string
	Parent   *CompiledLambda // lexically enclosing lambda, nil for a compile unit

	// Unit marks a top-level compile unit. Its defines bind names in the
	// dynamic environment instead of declaring locals, and Globals lists
	// those names in the order their defines were compiled.
	Unit    bool
	Globals []string
}

func (*CompiledLambda) Kind() Kind { return KindCompiledLambda }

// NewCompiledLambda allocates an empty compiled lambda for the given arguments.
func NewCompiledLambda(argNames []string, parent *CompiledLambda) *CompiledLambda {
	names := make([]string, len(argNames), len(argNames)+4)
	copy(names, argNames)
	return &CompiledLambda{
		ArgCount: len(argNames),
		Names:    names,
		Parent:   parent,
	}
}

// ---------------------------------------------------------------------------
// Code generation
// ---------------------------------------------------------------------------

// Emit appends an instruction and returns its index.
func (cl *CompiledLambda) Emit(in Instruction) int {
	cl.Code = append(cl.Code, in)
	return len(cl.Code) - 1
}

// EmitOp appends an instruction without operands and returns its index.
func (cl *CompiledLambda) EmitOp(op Opcode) int {
	return cl.Emit(Instruction{Op: op})
}

// EmitIndex appends an instruction with an Index operand.
func (cl *CompiledLambda) EmitIndex(op Opcode, index int) int {
	return cl.Emit(Instruction{Op: op, Index: indexOperand(op, index)})
}

// EmitAddressed appends an instruction addressing a slot frameOffset
// scopes outward.
func (cl *CompiledLambda) EmitAddressed(op Opcode, frameOffset, index int) int {
	if frameOffset < math.MinInt16 || frameOffset > math.MaxInt16 {
		panic(fmt.Sprintf("EmitAddressed: frame offset %d of %s does not fit in 16 bits", frameOffset, op))
	}
	return cl.Emit(Instruction{Op: op, FrameOffset: int16(frameOffset), Index: indexOperand(op, index)})
}

func indexOperand(op Opcode, index int) int32 {
	if index < math.MinInt32 || index > math.MaxInt32 {
		panic(fmt.Sprintf("%s: index %d does not fit in 32 bits", op, index))
	}
	return int32(index)
}

// BackpatchJump points the jump at index to the next instruction to be
// emitted. Patching anything but a jump is a programming error.
func (cl *CompiledLambda) BackpatchJump(index int) {
	in := &cl.Code[index]
	if !in.Op.IsJump() {
		panic(fmt.Sprintf("BackpatchJump: instruction %d is %s, not a jump", index, in.Op))
	}
	in.Index = int32(len(cl.Code) - index - 1)
}

// AddLiteral appends a to the literal table and returns its index.
// Symbols are shared: adding the same symbol twice returns the same index.
func (cl *CompiledLambda) AddLiteral(a Atom) int {
	if sym, ok := a.(Sym); ok {
		for i, lit := range cl.Literals {
			if s, ok := lit.(Sym); ok && s == sym {
				return i
			}
		}
	}
	cl.Literals = append(cl.Literals, a)
	return len(cl.Literals) - 1
}

// AddLocal declares a new local and returns its local index.
func (cl *CompiledLambda) AddLocal(name string) int {
	cl.Names = append(cl.Names, name)
	cl.VarCount++
	return cl.VarCount - 1
}

// Lookup finds name among this lambda's own names, latest declaration
// first. It returns the index into Names.
func (cl *CompiledLambda) Lookup(name string) (int, bool) {
	for i := len(cl.Names) - 1; i >= 0; i-- {
		if cl.Names[i] == name {
			return i, true
		}
	}
	return -1, false
}

// IsUnit reports whether cl is a top-level compile unit.
func (cl *CompiledLambda) IsUnit() bool {
	return cl.Unit
}
