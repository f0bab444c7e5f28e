package allocdiscovery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDynamic_MissingLibcFails(t *testing.T) {
	orig := globPatterns
	globPatterns = map[Kind][]string{
		Libc: {filepath.Join(t.TempDir(), "libc.so*")},
	}
	defer func() { globPatterns = orig }()

	_, err := FindDynamic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "libc")
}
