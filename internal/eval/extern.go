package eval

// DefaultExternFuncs returns the runtime routines the lowering calls by
// name, implemented over the VM's memory.
func DefaultExternFuncs() ExternFuncs {
	return ExternFuncs{
		"type_assertion_check2": typeAssertionCheck,
		"cstring_len":           cstringLen,
	}
}

// typeAssertionCheck(ok bool, file string, line i32, column i32, from typeid, to typeid, data rawptr)
func typeAssertionCheck(vm *VM, args [][]byte) ([]byte, error) {
	if len(args) != 7 {
		return nil, trapf(TrapBadCall, "type_assertion_check2 takes 7 arguments, got %d", len(args))
	}
	if Bool(args[0]) {
		return nil, nil
	}
	file, err := vm.ReadString(args[1])
	if err != nil {
		return nil, err
	}
	perr := &PanicError{
		File:   file,
		Line:   int32(Int(args[2])), //nolint:gosec // encoded as i32
		Column: int32(Int(args[3])), //nolint:gosec // encoded as i32
		From:   Uint(args[4]),
		To:     Uint(args[5]),
	}
	vm.Logger.Debug("type assertion failed", "file", perr.File, "line", perr.Line, "from", perr.From, "to", perr.To)
	return nil, perr
}

func cstringLen(vm *VM, args [][]byte) ([]byte, error) {
	if len(args) != 1 {
		return nil, trapf(TrapBadCall, "cstring_len takes 1 argument, got %d", len(args))
	}
	n, trap := vm.mem.cstringLen(Uint(args[0]))
	if trap != nil {
		return nil, trap
	}
	return vm.Word(int64(n)), nil
}
