package vm

import "fmt"

// Fault is a broken VM invariant: bad operand types, out-of-range
// indices, invalid opcodes. Well-formed bytecode never produces one, so
// faults are raised with panic rather than returned.
type Fault struct {
	Op      Opcode
	IP      int // index of the faulting instruction, -1 outside the loop
	Message string
}

func (f *Fault) Error() string {
	if f.IP < 0 {
		return "vm fault: " + f.Message
	}
	return fmt.Sprintf("vm fault at %04d (%s): %s", f.IP, f.Op, f.Message)
}

func faultf(op Opcode, ip int, format string, args ...any) *Fault {
	return &Fault{Op: op, IP: ip, Message: fmt.Sprintf(format, args...)}
}
