package llvm

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/types"
)

// Value is an IR value paired with its source-level type. An address is a
// Value whose Type is a pointer; its pointee is the logical object.
type Value struct {
	V    value.Value
	Type types.TypeID
}

// IsValid reports whether v carries an IR value.
func (v Value) IsValid() bool { return v.V != nil }

// IsConstant reports whether v is a compile-time constant.
func (v Value) IsConstant() bool {
	_, ok := v.V.(constant.Constant)
	return ok
}

func (v Value) constant() (constant.Constant, bool) {
	c, ok := v.V.(constant.Constant)
	return c, ok
}

// Selection is a path of field indices for one deep field access. The
// sentinel UnionTagIndex selects the tag of a union.
type Selection []int32

// UnionTagIndex addresses the discriminant of a tagged union.
const UnionTagIndex int32 = -1

// withType relabels v without touching its IR value.
func (v Value) withType(t types.TypeID) Value { return Value{V: v.V, Type: t} }
