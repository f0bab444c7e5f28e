// Package allocdiscovery locates the allocator libraries a traced process
// links against, dynamically or statically, so memtrack knows which
// symbols to uprobe.
package allocdiscovery

// Kind identifies one of the allocator families memtrack knows how to
// instrument.
type Kind int

const (
	Libc Kind = iota
	LibCpp
	Jemalloc
	Mimalloc
)

// All returns every known allocator kind, in the order static-binary
// symbol lookup should try them: first match wins.
func All() []Kind {
	return []Kind{Libc, LibCpp, Jemalloc, Mimalloc}
}

func (k Kind) String() string {
	switch k {
	case Libc:
		return "libc"
	case LibCpp:
		return "libstdc++"
	case Jemalloc:
		return "jemalloc"
	case Mimalloc:
		return "mimalloc"
	default:
		return "unknown"
	}
}

// IsRequired reports whether discovery must find at least one library of
// this kind. Every traced process links libc; the others are optional.
func (k Kind) IsRequired() bool {
	return k == Libc
}

// Symbols returns the entry-point symbols to uprobe for this allocator
// kind. Symbols that also need a return probe (to capture the returned
// pointer) are listed in ReturnSymbols.
func (k Kind) Symbols() []string {
	switch k {
	case Libc:
		return []string{"malloc", "calloc", "realloc", "free", "mmap", "munmap", "brk"}
	case LibCpp:
		return []string{"_Znwm", "_Znam", "_ZdlPv", "_ZdaPv"}
	case Jemalloc:
		return []string{"_rjem_malloc", "_rjem_calloc", "_rjem_realloc", "_rjem_free"}
	case Mimalloc:
		return []string{"mi_malloc", "mi_malloc_aligned", "mi_free"}
	default:
		return nil
	}
}

// ReturnSymbols returns the subset of Symbols that need a uretprobe to
// learn the address an allocation call returned.
func (k Kind) ReturnSymbols() []string {
	switch k {
	case Libc:
		return []string{"malloc", "calloc", "realloc", "mmap"}
	case LibCpp:
		return []string{"_Znwm", "_Znam"}
	case Jemalloc:
		return []string{"_rjem_malloc", "_rjem_calloc", "_rjem_realloc"}
	case Mimalloc:
		return []string{"mi_malloc", "mi_malloc_aligned"}
	default:
		return nil
	}
}

// Lib pairs a discovered allocator kind with the filesystem path of the
// library (or executable, for the static case) that provides it.
type Lib struct {
	Kind Kind
	Path string
}
