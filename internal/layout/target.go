package layout

import "fmt"

// Target describes the ABI target triple and its pointer properties.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:   "x86_64-linux-gnu",
		PtrSize:  8,
		PtrAlign: 8,
	}
}

func I386LinuxGNU() Target {
	return Target{
		Triple:   "i386-linux-gnu",
		PtrSize:  4,
		PtrAlign: 4,
	}
}

func Wasm32() Target {
	return Target{
		Triple:   "wasm32-unknown-unknown",
		PtrSize:  4,
		PtrAlign: 4,
	}
}

// TargetByTriple resolves one of the known targets. An empty triple selects
// x86_64-linux-gnu.
func TargetByTriple(triple string) (Target, error) {
	switch triple {
	case "", "x86_64-linux-gnu", "x86_64-unknown-linux-gnu":
		return X86_64LinuxGNU(), nil
	case "i386-linux-gnu", "i686-linux-gnu":
		return I386LinuxGNU(), nil
	case "wasm32", "wasm32-unknown-unknown":
		return Wasm32(), nil
	default:
		return Target{}, fmt.Errorf("unknown target triple %q", triple)
	}
}

// WordBits is the width of the target's int/uintptr in bits.
func (t Target) WordBits() uint64 {
	if t.PtrSize <= 0 {
		return 64
	}
	return uint64(t.PtrSize) * 8 //nolint:gosec // PtrSize is a small positive constant
}
