package eval

import (
	"fmt"
)

// TrapCode identifies why execution stopped abnormally.
type TrapCode int

// Stable trap codes - do not change values.
const (
	TrapNullAccess  TrapCode = 2001 // EV2001: load or store through nil
	TrapOutOfBounds TrapCode = 2002 // EV2002: access outside allocated memory
	TrapUnreachable TrapCode = 2003 // EV2003: unreachable executed
	TrapUnsupported TrapCode = 2004 // EV2004: instruction or intrinsic not interpreted
	TrapStepLimit   TrapCode = 2005 // EV2005: step limit exhausted
	TrapBadCall     TrapCode = 2006 // EV2006: unknown callee or arity mismatch
)

func (c TrapCode) String() string {
	return fmt.Sprintf("EV%d", c)
}

// TrapError is an execution fault: the emitted code did something no
// correct lowering should make it do.
type TrapError struct {
	Code    TrapCode
	Func    string
	Block   string
	Message string
}

func (e *TrapError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("trap %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("trap %s in %s/%s: %s", e.Code, e.Func, e.Block, e.Message)
}

// PanicError is a failed type assertion reported through the runtime.
type PanicError struct {
	File   string
	Line   int32
	Column int32
	From   uint64
	To     uint64
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s(%d:%d) invalid type assertion from typeid %d to typeid %d", e.File, e.Line, e.Column, e.From, e.To)
}

func trapf(code TrapCode, format string, args ...any) *TrapError {
	return &TrapError{Code: code, Message: fmt.Sprintf(format, args...)}
}
