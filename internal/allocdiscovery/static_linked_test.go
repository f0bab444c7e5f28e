package allocdiscovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func symbolSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// TestMatchKind_PartialSymbolSetStillMatches pins the any-symbol
// predicate: a binary exposing only one of a kind's symbols (the rest
// stripped or inlined away) is still recognized.
func TestMatchKind_PartialSymbolSetStillMatches(t *testing.T) {
	kind, ok := matchKind(symbolSet("_rjem_malloc", "main", "_start"))
	assert.True(t, ok)
	assert.Equal(t, Jemalloc, kind)
}

func TestMatchKind_FirstKindWinsAcrossMultipleMatches(t *testing.T) {
	kind, ok := matchKind(symbolSet("mi_free", "malloc"))
	assert.True(t, ok)
	assert.Equal(t, Libc, kind)
}

func TestMatchKind_NoAllocatorSymbols(t *testing.T) {
	_, ok := matchKind(symbolSet("main", "_start", "puts"))
	assert.False(t, ok)
}
