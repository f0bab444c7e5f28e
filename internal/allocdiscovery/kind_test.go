package allocdiscovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_OnlyLibcIsRequired(t *testing.T) {
	for _, k := range All() {
		assert.Equal(t, k == Libc, k.IsRequired(), "kind %s", k)
	}
}

// TestKind_ReturnSymbolsIsSubsetOfSymbols pins the invariant
// bpf/alloc/alloc.c relies on: every symbol listed as needing a return
// probe must also appear in the entry-probe symbol set, since
// AttachAllocator only wires a uretprobe alongside an already-attached
// uprobe for the same symbol.
func TestKind_ReturnSymbolsIsSubsetOfSymbols(t *testing.T) {
	for _, k := range All() {
		entries := make(map[string]struct{})
		for _, s := range k.Symbols() {
			entries[s] = struct{}{}
		}
		for _, s := range k.ReturnSymbols() {
			assert.Contains(t, entries, s, "kind %s return symbol %s must be an entry symbol", k, s)
		}
	}
}

func TestKind_LibcRequiresMallocAndFree(t *testing.T) {
	assert.Contains(t, Libc.Symbols(), "malloc")
	assert.Contains(t, Libc.Symbols(), "free")
}
