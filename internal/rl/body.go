package rl

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"dexlower/internal/dex"
)

// Label is a branch target. It is bound to the position of a Mark call.
type Label struct {
	id     int
	target *Instruction
}

// Instruction is one register-level instruction.
type Instruction struct {
	Op      Opcode
	Operand any
	Regs    []*Register
}

// Target returns the bound instruction of a branch, or nil.
func (ins *Instruction) Target() *Instruction {
	if l, ok := ins.Operand.(*Label); ok {
		return l.target
	}
	return nil
}

// MethodBody owns the registers and instructions of one method.
type MethodBody struct {
	regs   []*Register
	args   []*Register
	code   []*Instruction
	labels []*Label

	this   *Register
	params []*Register

	tempSlots int
	argSlots  int
	dirty     bool
}

// NewBody creates a body for a method with the given prototype. Argument
// registers are allocated up front in declaration order, the receiver first.
func NewBody(proto *dex.Prototype, static bool) *MethodBody {
	b := &MethodBody{}
	if !static {
		b.this = b.allocate(Object, Argument)
	}
	for _, p := range proto.Params() {
		b.params = append(b.params, b.allocate(TypeOf(p.Type), Argument))
	}
	return b
}

func (b *MethodBody) allocate(t RType, cat Category) *Register {
	r := &Register{Type: t, Category: cat, body: b, order: len(b.regs)}
	b.regs = append(b.regs, r)
	if cat == Argument {
		b.args = append(b.args, r)
		b.argSlots += r.Width()
	} else {
		b.tempSlots += r.Width()
	}
	b.dirty = true
	return r
}

// This returns the receiver register, nil for static methods.
func (b *MethodBody) This() *Register { return b.this }

// Param returns the register holding the i-th declared parameter.
func (b *MethodBody) Param(i int) *Register { return b.params[i] }

// Params returns the parameter registers.
func (b *MethodBody) Params() []*Register { return append([]*Register(nil), b.params...) }

// AllocateTemp allocates a temporary of the given class.
func (b *MethodBody) AllocateTemp(t RType) *Register { return b.allocate(t, Temp) }

// AllocateFor allocates a temporary able to hold values of t.
func (b *MethodBody) AllocateFor(t dex.TypeRef) *Register { return b.allocate(TypeOf(t), Temp) }

// Add appends an instruction.
func (b *MethodBody) Add(op Opcode, operand any, regs ...*Register) *Instruction {
	ins := &Instruction{Op: op, Operand: operand, Regs: regs}
	b.code = append(b.code, ins)
	return ins
}

// NewLabel creates an unbound label.
func (b *MethodBody) NewLabel() *Label {
	l := &Label{id: len(b.labels)}
	b.labels = append(b.labels, l)
	return l
}

// Mark binds l to the next instruction position by emitting an anchor nop.
func (b *MethodBody) Mark(l *Label) *Instruction {
	ins := b.Add(Nop, nil)
	l.target = ins
	return ins
}

// Instructions returns the instruction list.
func (b *MethodBody) Instructions() []*Instruction { return b.code }

// Len returns the number of instructions.
func (b *MethodBody) Len() int { return len(b.code) }

// Registers returns every allocated register in allocation order.
func (b *MethodBody) Registers() []*Register { return append([]*Register(nil), b.regs...) }

// layout numbers temporaries from v0 and places arguments at the top.
func (b *MethodBody) layout() {
	if !b.dirty {
		return
	}
	next := 0
	for _, r := range b.regs {
		if r.Category == Temp {
			r.index = next
			next += r.Width()
		}
	}
	for _, r := range b.args {
		r.index = next
		next += r.Width()
	}
	b.dirty = false
}

// RegisterCount returns the total slot count.
func (b *MethodBody) RegisterCount() int { return b.tempSlots + b.argSlots }

// Frame is the register frame header of a body.
type Frame struct {
	Registers uint16
	Ins       uint16
	Outs      uint16
}

// Frame computes the frame header, checking every count fits 16 bits.
func (b *MethodBody) Frame() (Frame, error) {
	var f Frame
	var err error
	if f.Registers, err = safecast.Conv[uint16](b.RegisterCount()); err != nil {
		return f, fmt.Errorf("register count: %w", err)
	}
	if f.Ins, err = safecast.Conv[uint16](b.argSlots); err != nil {
		return f, fmt.Errorf("in slots: %w", err)
	}
	outs := 0
	for _, ins := range b.code {
		if !ins.Op.IsInvoke() {
			continue
		}
		n := 0
		for _, r := range ins.Regs {
			n += r.Width()
		}
		outs = max(outs, n)
	}
	if f.Outs, err = safecast.Conv[uint16](outs); err != nil {
		return f, fmt.Errorf("out slots: %w", err)
	}
	return f, nil
}

func (b *MethodBody) String() string {
	b.layout()
	index := make(map[*Instruction]int, len(b.code))
	for i, ins := range b.code {
		index[ins] = i
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, ".registers %d\n", b.RegisterCount())
	for i, ins := range b.code {
		fmt.Fprintf(&sb, "%04d %s", i, ins.Op)
		for j, r := range ins.Regs {
			if j == 0 {
				sb.WriteByte(' ')
			} else {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
		if s := formatOperand(ins.Operand, index); s != "" {
			if len(ins.Regs) > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(" ")
			sb.WriteString(s)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatOperand(v any, index map[*Instruction]int) string {
	switch x := v.(type) {
	case nil:
		return ""
	case *Label:
		if x.target == nil {
			return fmt.Sprintf("L%d(unbound)", x.id)
		}
		return fmt.Sprintf(":%04d", index[x.target])
	case string:
		return fmt.Sprintf("%q", x)
	case dex.TypeRef:
		return x.Descriptor()
	case dex.FieldRef:
		return x.String()
	case dex.MethodRef:
		return x.String()
	}
	return fmt.Sprint(v)
}
