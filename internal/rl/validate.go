package rl

import (
	"errors"
	"fmt"

	"dexlower/internal/dex"
)

// Validate checks register ownership, operand widths, invoke argument lists,
// branch targets and that control never falls off the end.
func (b *MethodBody) Validate() error {
	if len(b.code) == 0 {
		return errors.New("empty body")
	}
	owned := make(map[*Instruction]bool, len(b.code))
	for _, ins := range b.code {
		owned[ins] = true
	}
	for i, ins := range b.code {
		if ins.Op >= opcodeCount {
			return fmt.Errorf("%04d: invalid opcode %d", i, ins.Op)
		}
		for _, r := range ins.Regs {
			if r == nil || r.body != b {
				return fmt.Errorf("%04d %s: %w", i, ins.Op, ErrUnallocated)
			}
		}
		if err := checkOperand(ins); err != nil {
			return fmt.Errorf("%04d %s: %w", i, ins.Op, err)
		}
		var err error
		if ins.Op.IsInvoke() {
			err = checkInvoke(ins)
		} else {
			err = checkRegs(ins.Regs, opTable[ins.Op].regs)
		}
		if err != nil {
			return fmt.Errorf("%04d %s: %w", i, ins.Op, err)
		}
		if ins.Op.IsBranch() {
			l := ins.Operand.(*Label)
			if l.target == nil || !owned[l.target] {
				return fmt.Errorf("%04d %s: unbound label L%d", i, ins.Op, l.id)
			}
		}
	}
	if last := b.code[len(b.code)-1]; !last.Op.Terminal() {
		return fmt.Errorf("control falls off the end after %s", last.Op)
	}
	return nil
}

func checkOperand(ins *Instruction) error {
	ok := false
	switch ins.Op.Operand() {
	case OperandNone:
		ok = ins.Operand == nil
	case OperandInt:
		_, ok = ins.Operand.(int32)
	case OperandLong:
		_, ok = ins.Operand.(int64)
	case OperandString:
		_, ok = ins.Operand.(string)
	case OperandType:
		var t dex.TypeRef
		t, ok = ins.Operand.(dex.TypeRef)
		ok = ok && !t.IsZero()
	case OperandField:
		_, ok = ins.Operand.(dex.FieldRef)
	case OperandMethod:
		var m dex.MethodRef
		m, ok = ins.Operand.(dex.MethodRef)
		ok = ok && m.Proto != nil
	case OperandLabel:
		var l *Label
		l, ok = ins.Operand.(*Label)
		ok = ok && l != nil
	}
	if !ok {
		return fmt.Errorf("bad operand %T", ins.Operand)
	}
	return nil
}

func checkRegs(regs []*Register, spec string) error {
	if len(regs) != len(spec) {
		return fmt.Errorf("want %d registers, got %d", len(spec), len(regs))
	}
	for i, r := range regs {
		var ok bool
		switch spec[i] {
		case 'v':
			ok = r.Type == Value
		case 'w':
			ok = r.Type == Wide
		case 'o':
			ok = r.Type == Object
		case 'n':
			ok = r.Type != Wide
		}
		if !ok {
			return fmt.Errorf("operand %d is %s: %w", i, r.Type, ErrWidth)
		}
	}
	return nil
}

func checkInvoke(ins *Instruction) error {
	ref := ins.Operand.(dex.MethodRef)
	var want []RType
	if ins.Op != InvokeStatic {
		want = append(want, Object)
	}
	for _, p := range ref.Proto.Params() {
		want = append(want, TypeOf(p.Type))
	}
	if len(ins.Regs) != len(want) {
		return fmt.Errorf("%s: want %d arguments, got %d", ref, len(want), len(ins.Regs))
	}
	for i, r := range ins.Regs {
		if r.Type != want[i] {
			return fmt.Errorf("%s: argument %d is %s, want %s: %w", ref, i, r.Type, want[i], ErrWidth)
		}
	}
	return nil
}
