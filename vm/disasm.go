package vm

import (
	"fmt"
	"strings"
)

// DisassembleInstruction renders the instruction at pc of cl.
func DisassembleInstruction(cl *CompiledLambda, pc int) string {
	in := cl.Code[pc]
	info := in.Op.Info()

	switch in.Op {
	case OpJump, OpJumpIfFalse:
		target := pc + 1 + int(in.Index)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pc, info.Name, in.Index, target)

	case OpPushLiteral, OpLambda:
		return fmt.Sprintf("%04d  %s %d %d%s", pc, info.Name, in.FrameOffset, in.Index, literalComment(cl, in))

	case OpPushArg, OpPushLocal, OpStoreLocal:
		return fmt.Sprintf("%04d  %s %d %d%s", pc, info.Name, in.FrameOffset, in.Index, nameComment(cl, in))

	case OpPushEnv, OpStoreEnv, OpSetEnv:
		return fmt.Sprintf("%04d  %s %d%s", pc, info.Name, in.Index, literalComment(cl, in))

	case OpPushNum, OpCall:
		return fmt.Sprintf("%04d  %s %d", pc, info.Name, in.Index)
	}
	return fmt.Sprintf("%04d  %s", pc, info.Name)
}

func literalComment(cl *CompiledLambda, in Instruction) string {
	if in.FrameOffset != 0 || int(in.Index) >= len(cl.Literals) || in.Index < 0 {
		return ""
	}
	return "  ; " + Sprint(cl.Literals[in.Index])
}

func nameComment(cl *CompiledLambda, in Instruction) string {
	owner := cl
	for i := 0; i < int(in.FrameOffset) && owner != nil; i++ {
		owner = owner.Parent
	}
	if owner == nil {
		return ""
	}
	slot := int(in.Index)
	if in.Op != OpPushArg {
		slot += owner.ArgCount
	}
	if slot < 0 || slot >= len(owner.Names) {
		return ""
	}
	return "  ; " + owner.Names[slot]
}

// Disassemble returns a listing of cl, followed by the listings of the
// compiled lambdas in its literal table.
func Disassemble(cl *CompiledLambda) string {
	var b strings.Builder
	disassembleInto(&b, cl, "")
	return strings.TrimRight(b.String(), "\n")
}

func disassembleInto(b *strings.Builder, cl *CompiledLambda, indent string) {
	fmt.Fprintf(b, "%s; lambda %s args=%d vars=%d names=(%s)\n",
		indent, cl.Fingerprint().Short(), cl.ArgCount, cl.VarCount, strings.Join(cl.Names, " "))
	for pc := range cl.Code {
		b.WriteString(indent)
		b.WriteString(DisassembleInstruction(cl, pc))
		b.WriteByte('\n')
	}
	for _, lit := range cl.Literals {
		if child, ok := lit.(*CompiledLambda); ok {
			disassembleInto(b, child, indent+"    ")
		}
	}
}
