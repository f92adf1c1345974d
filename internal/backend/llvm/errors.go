package llvm

import (
	"fmt"
	"strings"

	"lowir/internal/types"
)

// InternalError reports a broken invariant between the front end and the
// lowering layer. It is never a user-facing diagnostic; the driver aborts
// the whole compilation on the first one.
type InternalError struct {
	Op     string
	Detail string
	Types  []types.TypeID
	names  []string
}

func (e *InternalError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString("lowering ")
	sb.WriteString(e.Op)
	sb.WriteString(": ")
	sb.WriteString(e.Detail)
	if len(e.names) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.names, ", "))
		sb.WriteString("]")
	}
	return sb.String()
}

func (m *Module) internalf(op string, tys []types.TypeID, format string, args ...any) *InternalError {
	names := make([]string, 0, len(tys))
	for _, t := range tys {
		names = append(names, m.Types.TypeString(t))
	}
	return &InternalError{
		Op:     op,
		Detail: fmt.Sprintf(format, args...),
		Types:  tys,
		names:  names,
	}
}

func tys(ids ...types.TypeID) []types.TypeID { return ids }
