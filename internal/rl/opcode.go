package rl

import "dexlower/internal/dex"

// Opcode is a register-level instruction code.
type Opcode uint8

const (
	Nop Opcode = iota
	Move
	MoveWide
	MoveObject
	MoveResult
	MoveResultWide
	MoveResultObject
	ReturnVoid
	Return
	ReturnWide
	ReturnObject
	Const
	ConstWide
	ConstString
	ConstClass
	CheckCast
	InstanceOf
	ArrayLength
	NewInstance
	NewArray
	Goto
	CmpLong
	IfEq
	IfNe
	IfLt
	IfGe
	IfGt
	IfLe
	IfEqz
	IfNez
	IfLtz
	IfGez
	Aget
	AgetWide
	AgetObject
	AgetBoolean
	AgetByte
	AgetChar
	AgetShort
	Aput
	AputWide
	AputObject
	AputBoolean
	AputByte
	AputChar
	AputShort
	Iget
	IgetWide
	IgetObject
	IgetBoolean
	IgetByte
	IgetChar
	IgetShort
	Iput
	IputWide
	IputObject
	IputBoolean
	IputByte
	IputChar
	IputShort
	Sget
	SgetWide
	SgetObject
	SgetBoolean
	SgetByte
	SgetChar
	SgetShort
	Sput
	SputWide
	SputObject
	SputBoolean
	SputByte
	SputChar
	SputShort
	InvokeVirtual
	InvokeSuper
	InvokeDirect
	InvokeStatic
	InvokeInterface
	AddInt
	XorInt
	AddIntLit
	MulIntLit
	IntToLong
	LongToInt
	opcodeCount
)

// OperandKind describes the non-register operand of an opcode.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandInt              // int32
	OperandLong             // int64
	OperandString
	OperandType   // dex.TypeRef
	OperandField  // dex.FieldRef
	OperandMethod // dex.MethodRef
	OperandLabel  // *Label
)

// register slot letters: v value, w wide, o object, n value or object.
type opInfo struct {
	name     string
	regs     string
	operand  OperandKind
	terminal bool
}

var opTable = [opcodeCount]opInfo{
	Nop:              {"nop", "", OperandNone, false},
	Move:             {"move", "vv", OperandNone, false},
	MoveWide:         {"move-wide", "ww", OperandNone, false},
	MoveObject:       {"move-object", "oo", OperandNone, false},
	MoveResult:       {"move-result", "v", OperandNone, false},
	MoveResultWide:   {"move-result-wide", "w", OperandNone, false},
	MoveResultObject: {"move-result-object", "o", OperandNone, false},
	ReturnVoid:       {"return-void", "", OperandNone, true},
	Return:           {"return", "v", OperandNone, true},
	ReturnWide:       {"return-wide", "w", OperandNone, true},
	ReturnObject:     {"return-object", "o", OperandNone, true},
	Const:            {"const", "n", OperandInt, false},
	ConstWide:        {"const-wide", "w", OperandLong, false},
	ConstString:      {"const-string", "o", OperandString, false},
	ConstClass:       {"const-class", "o", OperandType, false},
	CheckCast:        {"check-cast", "o", OperandType, false},
	InstanceOf:       {"instance-of", "vo", OperandType, false},
	ArrayLength:      {"array-length", "vo", OperandNone, false},
	NewInstance:      {"new-instance", "o", OperandType, false},
	NewArray:         {"new-array", "ov", OperandType, false},
	Goto:             {"goto", "", OperandLabel, true},
	CmpLong:          {"cmp-long", "vww", OperandNone, false},
	IfEq:             {"if-eq", "nn", OperandLabel, false},
	IfNe:             {"if-ne", "nn", OperandLabel, false},
	IfLt:             {"if-lt", "vv", OperandLabel, false},
	IfGe:             {"if-ge", "vv", OperandLabel, false},
	IfGt:             {"if-gt", "vv", OperandLabel, false},
	IfLe:             {"if-le", "vv", OperandLabel, false},
	IfEqz:            {"if-eqz", "n", OperandLabel, false},
	IfNez:            {"if-nez", "n", OperandLabel, false},
	IfLtz:            {"if-ltz", "v", OperandLabel, false},
	IfGez:            {"if-gez", "v", OperandLabel, false},
	Aget:             {"aget", "vov", OperandNone, false},
	AgetWide:         {"aget-wide", "wov", OperandNone, false},
	AgetObject:       {"aget-object", "oov", OperandNone, false},
	AgetBoolean:      {"aget-boolean", "vov", OperandNone, false},
	AgetByte:         {"aget-byte", "vov", OperandNone, false},
	AgetChar:         {"aget-char", "vov", OperandNone, false},
	AgetShort:        {"aget-short", "vov", OperandNone, false},
	Aput:             {"aput", "vov", OperandNone, false},
	AputWide:         {"aput-wide", "wov", OperandNone, false},
	AputObject:       {"aput-object", "oov", OperandNone, false},
	AputBoolean:      {"aput-boolean", "vov", OperandNone, false},
	AputByte:         {"aput-byte", "vov", OperandNone, false},
	AputChar:         {"aput-char", "vov", OperandNone, false},
	AputShort:        {"aput-short", "vov", OperandNone, false},
	Iget:             {"iget", "vo", OperandField, false},
	IgetWide:         {"iget-wide", "wo", OperandField, false},
	IgetObject:       {"iget-object", "oo", OperandField, false},
	IgetBoolean:      {"iget-boolean", "vo", OperandField, false},
	IgetByte:         {"iget-byte", "vo", OperandField, false},
	IgetChar:         {"iget-char", "vo", OperandField, false},
	IgetShort:        {"iget-short", "vo", OperandField, false},
	Iput:             {"iput", "vo", OperandField, false},
	IputWide:         {"iput-wide", "wo", OperandField, false},
	IputObject:       {"iput-object", "oo", OperandField, false},
	IputBoolean:      {"iput-boolean", "vo", OperandField, false},
	IputByte:         {"iput-byte", "vo", OperandField, false},
	IputChar:         {"iput-char", "vo", OperandField, false},
	IputShort:        {"iput-short", "vo", OperandField, false},
	Sget:             {"sget", "v", OperandField, false},
	SgetWide:         {"sget-wide", "w", OperandField, false},
	SgetObject:       {"sget-object", "o", OperandField, false},
	SgetBoolean:      {"sget-boolean", "v", OperandField, false},
	SgetByte:         {"sget-byte", "v", OperandField, false},
	SgetChar:         {"sget-char", "v", OperandField, false},
	SgetShort:        {"sget-short", "v", OperandField, false},
	Sput:             {"sput", "v", OperandField, false},
	SputWide:         {"sput-wide", "w", OperandField, false},
	SputObject:       {"sput-object", "o", OperandField, false},
	SputBoolean:      {"sput-boolean", "v", OperandField, false},
	SputByte:         {"sput-byte", "v", OperandField, false},
	SputChar:         {"sput-char", "v", OperandField, false},
	SputShort:        {"sput-short", "v", OperandField, false},
	InvokeVirtual:    {"invoke-virtual", "*", OperandMethod, false},
	InvokeSuper:      {"invoke-super", "*", OperandMethod, false},
	InvokeDirect:     {"invoke-direct", "*", OperandMethod, false},
	InvokeStatic:     {"invoke-static", "*", OperandMethod, false},
	InvokeInterface:  {"invoke-interface", "*", OperandMethod, false},
	AddInt:           {"add-int", "vvv", OperandNone, false},
	XorInt:           {"xor-int", "vvv", OperandNone, false},
	AddIntLit:        {"add-int/lit16", "vv", OperandInt, false},
	MulIntLit:        {"mul-int/lit16", "vv", OperandInt, false},
	IntToLong:        {"int-to-long", "wv", OperandNone, false},
	LongToInt:        {"long-to-int", "vw", OperandNone, false},
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opTable[op].name
	}
	return "invalid"
}

// Operand returns the operand kind op expects.
func (op Opcode) Operand() OperandKind { return opTable[op].operand }

// IsInvoke reports the invoke family.
func (op Opcode) IsInvoke() bool { return op >= InvokeVirtual && op <= InvokeInterface }

// IsBranch reports instructions carrying a label.
func (op Opcode) IsBranch() bool { return opTable[op].operand == OperandLabel }

// Terminal reports instructions after which control does not fall through.
func (op Opcode) Terminal() bool { return opTable[op].terminal }

type accessFamily struct {
	plain, wide, object, boolean, byte_, char, short Opcode
}

var (
	agetOps = accessFamily{Aget, AgetWide, AgetObject, AgetBoolean, AgetByte, AgetChar, AgetShort}
	aputOps = accessFamily{Aput, AputWide, AputObject, AputBoolean, AputByte, AputChar, AputShort}
	igetOps = accessFamily{Iget, IgetWide, IgetObject, IgetBoolean, IgetByte, IgetChar, IgetShort}
	iputOps = accessFamily{Iput, IputWide, IputObject, IputBoolean, IputByte, IputChar, IputShort}
	sgetOps = accessFamily{Sget, SgetWide, SgetObject, SgetBoolean, SgetByte, SgetChar, SgetShort}
	sputOps = accessFamily{Sput, SputWide, SputObject, SputBoolean, SputByte, SputChar, SputShort}
)

func (f accessFamily) pick(t dex.TypeRef) Opcode {
	switch {
	case t.IsWide():
		return f.wide
	case t.IsReference():
		return f.object
	case t == dex.Boolean:
		return f.boolean
	case t == dex.Byte:
		return f.byte_
	case t == dex.Char:
		return f.char
	case t == dex.Short:
		return f.short
	}
	return f.plain
}

// AgetFor returns the aget variant for element type t.
func AgetFor(t dex.TypeRef) Opcode { return agetOps.pick(t) }

// AputFor returns the aput variant for element type t.
func AputFor(t dex.TypeRef) Opcode { return aputOps.pick(t) }

// IgetFor returns the iget variant for field type t.
func IgetFor(t dex.TypeRef) Opcode { return igetOps.pick(t) }

// IputFor returns the iput variant for field type t.
func IputFor(t dex.TypeRef) Opcode { return iputOps.pick(t) }

// SgetFor returns the sget variant for field type t.
func SgetFor(t dex.TypeRef) Opcode { return sgetOps.pick(t) }

// SputFor returns the sput variant for field type t.
func SputFor(t dex.TypeRef) Opcode { return sputOps.pick(t) }

// MoveFor returns the move variant for values of type t.
func MoveFor(t dex.TypeRef) Opcode {
	switch {
	case t.IsWide():
		return MoveWide
	case t.IsReference():
		return MoveObject
	}
	return Move
}

// MoveResultFor returns the move-result variant for a call returning t.
func MoveResultFor(t dex.TypeRef) Opcode {
	switch {
	case t.IsWide():
		return MoveResultWide
	case t.IsReference():
		return MoveResultObject
	}
	return MoveResult
}

// ReturnFor returns the return variant for a method returning t.
func ReturnFor(t dex.TypeRef) Opcode {
	switch {
	case t.IsVoid() || t.IsZero():
		return ReturnVoid
	case t.IsWide():
		return ReturnWide
	case t.IsReference():
		return ReturnObject
	}
	return Return
}

// TypeOf returns the register class that holds values of t.
func TypeOf(t dex.TypeRef) RType {
	switch {
	case t.IsWide():
		return Wide
	case t.IsReference():
		return Object
	}
	return Value
}
