package source

import "fmt"

// Pos is a human-readable position attached to expressions that may panic at
// runtime. It carries no other meaning for the backend.
type Pos struct {
	File   FileID
	Line   uint32 // 1-based
	Column uint32 // 1-based
}

// NoPos marks a missing position.
var NoPos = Pos{}

// IsValid reports whether the position points somewhere.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d:%d", p.File, p.Line, p.Column)
}
