package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a bytecode instruction.
type Opcode uint8

// Reserved
const (
	OpInvalid Opcode = 0 // never emitted; executing it is a fault
)

// Push constants
const (
	OpPushNil     Opcode = 1 // push nil
	OpPushTrue    Opcode = 2 // push true
	OpPushFalse   Opcode = 3 // push false
	OpPushNum     Opcode = 4 // push immediate number (Index)
	OpPushLiteral Opcode = 5 // push literal (FrameOffset, Index)
)

// Variables
const (
	OpPushArg    Opcode = 6  // push argument (FrameOffset, Index)
	OpPushLocal  Opcode = 7  // push local (FrameOffset, Index)
	OpStoreLocal Opcode = 8  // store top into local, keep it (FrameOffset, Index)
	OpPushEnv    Opcode = 9  // push dynamic binding of literal symbol (Index)
	OpStoreEnv   Opcode = 10 // define literal symbol in dynamic env, keep value (Index)
	OpSetEnv     Opcode = 11 // mutate existing dynamic binding, keep value (Index)
)

// Stack and control flow
const (
	OpDrop        Opcode = 12 // discard top of stack
	OpJump        Opcode = 13 // jump by Index instructions
	OpJumpIfFalse Opcode = 14 // pop, jump by Index if false
	OpCall        Opcode = 15 // call callee below Index arguments
	OpReturn      Opcode = 16 // return top of stack
	OpLambda      Opcode = 17 // instantiate compiled lambda literal (FrameOffset, Index)
)

// Primitives
const (
	OpAdd   Opcode = 18 // pop 2 numbers, push sum
	OpSub   Opcode = 19 // pop 2 numbers, push difference
	OpMul   Opcode = 20 // pop 2 numbers, push product
	OpDiv   Opcode = 21 // pop 2 numbers, push quotient
	OpEq    Opcode = 22 // pop 2, push true if equal
	OpCons  Opcode = 23 // pop first and rest, push pair
	OpFirst Opcode = 24 // pop pair, push first
	OpRest  Opcode = 25 // pop pair, push rest
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	Operands    int    // 0: none, 1: Index only, 2: FrameOffset and Index
	StackEffect int    // net effect on stack (-1 = variable)
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushNil:     {"PUSH_NIL", 0, 1},
	OpPushTrue:    {"PUSH_TRUE", 0, 1},
	OpPushFalse:   {"PUSH_FALSE", 0, 1},
	OpPushNum:     {"PUSH_NUM", 1, 1},
	OpPushLiteral: {"PUSH_LITERAL", 2, 1},

	OpPushArg:    {"PUSH_ARG", 2, 1},
	OpPushLocal:  {"PUSH_LOCAL", 2, 1},
	OpStoreLocal: {"STORE_LOCAL", 2, 0},
	OpPushEnv:    {"PUSH_FROM_ENV", 1, 1},
	OpStoreEnv:   {"STORE_TO_ENV", 1, 0},
	OpSetEnv:     {"SET_ENV", 1, 0},

	OpDrop:        {"DROP", 0, -1},
	OpJump:        {"JUMP", 1, 0},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, -1},
	OpCall:        {"CALL", 1, -1}, // variable: pops callee + args, pushes result
	OpReturn:      {"RETURN", 0, -1},
	OpLambda:      {"LAMBDA", 2, 1},

	OpAdd:   {"ADD", 0, -1},
	OpSub:   {"SUB", 0, -1},
	OpMul:   {"MUL", 0, -1},
	OpDiv:   {"DIV", 0, -1},
	OpEq:    {"EQ", 0, -1},
	OpCons:  {"CONS", 0, -1},
	OpFirst: {"FIRST", 0, 0},
	OpRest:  {"REST", 0, 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// IsJump reports whether op carries a relative jump offset.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpIfFalse
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is a fixed-size bytecode instruction.
//
// Index doubles as the literal/argument/local index, the immediate number,
// the argument count of a call and the relative offset of a jump. A jump
// continues at the instruction Index positions after the one following it.
type Instruction struct {
	Op          Opcode
	FrameOffset int16 // scopes to walk outward
	Index       int32
}

func (in Instruction) String() string {
	switch in.Op.Info().Operands {
	case 0:
		return in.Op.Name()
	case 1:
		return fmt.Sprintf("%s %d", in.Op.Name(), in.Index)
	default:
		return fmt.Sprintf("%s %d %d", in.Op.Name(), in.FrameOffset, in.Index)
	}
}

// Immediate number range of PUSH_NUM.
const (
	MinImmediate = -1 << 31
	MaxImmediate = 1<<31 - 1
)

// FitsImmediate reports whether n can be encoded in a PUSH_NUM instruction.
func FitsImmediate(n int64) bool {
	return n >= MinImmediate && n <= MaxImmediate
}
