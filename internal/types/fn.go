package types //nolint:revive

// ProcSignature returns the parameter and result tuples of a proc type.
func (in *Interner) ProcSignature(id TypeID) (params, results []TypeID, ok bool) {
	tt, found := in.Lookup(in.Base(id))
	if !found || tt.Kind != KindProc {
		return nil, nil, false
	}
	return in.TupleElems(tt.Elem), in.TupleElems(tt.Aux), true
}

// ProcOf builds a proc type from parameter and result lists.
func (in *Interner) ProcOf(params, results []TypeID) TypeID {
	return in.Proc(in.Tuple(params...), in.Tuple(results...))
}
