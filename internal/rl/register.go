// Package rl builds register-level method bodies: an append-only instruction
// list over a register file that only grows.
package rl

import (
	"errors"
	"fmt"
)

var (
	// ErrUnallocated reports a register that does not belong to the body.
	ErrUnallocated = errors.New("rl: register not allocated in this body")
	// ErrWidth reports an operand whose register width does not match its use.
	ErrWidth = errors.New("rl: register width mismatch")
)

// RType is the value class held by a register.
type RType uint8

const (
	// Value is a 32-bit primitive.
	Value RType = iota
	// Wide is a 64-bit primitive; it occupies a register pair.
	Wide
	// Object is a reference.
	Object
)

func (t RType) String() string {
	switch t {
	case Wide:
		return "wide"
	case Object:
		return "object"
	}
	return "value"
}

// Width returns the number of register slots a value of t occupies.
func (t RType) Width() int {
	if t == Wide {
		return 2
	}
	return 1
}

// Category tells argument registers from temporaries.
type Category uint8

const (
	Argument Category = iota
	Temp
)

// Register is one allocated register (or register pair for Wide).
type Register struct {
	Type     RType
	Category Category
	body     *MethodBody
	order    int
	index    int
}

// Width returns the slot count of the register.
func (r *Register) Width() int { return r.Type.Width() }

// Index returns the first slot of the register in the final frame.
// Temporaries come first, arguments occupy the top of the frame.
func (r *Register) Index() int {
	r.body.layout()
	return r.index
}

func (r *Register) String() string {
	idx := r.Index()
	if r.Category == Argument {
		return fmt.Sprintf("p%d", idx-r.body.tempSlots)
	}
	return fmt.Sprintf("v%d", idx)
}
