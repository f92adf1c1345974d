package layout

import (
	"fmt"
	"strings"

	"lowir/internal/types"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a recursive type with no fixed size.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	LayoutErrLengthConversion
	LayoutErrUnsupported
	LayoutErrBadAlign
	LayoutErrUnsized
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind   LayoutErrorKind
	Type   types.TypeID
	Cycle  []types.TypeID // for LayoutErrRecursiveUnsized
	Value  int64          // for LayoutErrBadAlign
	Err    error          // for LayoutErrLengthConversion
	Detail string         // for LayoutErrUnsupported and LayoutErrUnsized
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (type#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("type#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrLengthConversion:
		if e.Err != nil {
			return fmt.Sprintf("array length conversion error (type#%d): %v", e.Type, e.Err)
		}
		return fmt.Sprintf("array length conversion error (type#%d)", e.Type)
	case LayoutErrUnsupported:
		return fmt.Sprintf("no layout for type#%d: %s", e.Type, e.Detail)
	case LayoutErrBadAlign:
		return fmt.Sprintf("alignment %d is not a power of two (type#%d)", e.Value, e.Type)
	case LayoutErrUnsized:
		return fmt.Sprintf("unsized llvm type %s", e.Detail)
	default:
		return fmt.Sprintf("layout error kind=%d type#%d", e.Kind, e.Type)
	}
}
