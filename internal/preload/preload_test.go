package preload

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInject_AppendsWhenNoExistingPreload(t *testing.T) {
	env := []string{"PATH=/usr/bin", "HOME=/root"}
	out := Inject(env, "/tmp/shim.so")
	assert.Contains(t, out, "LD_PRELOAD=/tmp/shim.so")
	assert.Len(t, out, 3)
}

func TestInject_AppendsToExistingPreload(t *testing.T) {
	env := []string{"LD_PRELOAD=/tmp/one.so"}
	out := Inject(env, "/tmp/two.so")
	assert.Equal(t, []string{"LD_PRELOAD=/tmp/one.so /tmp/two.so"}, out)
}

func TestCheckLDPreloadCompatible_RejectsMissingExecutable(t *testing.T) {
	err := CheckLDPreloadCompatible("this-binary-does-not-exist-anywhere")
	assert.Error(t, err)
}

// TestCheckLDPreloadCompatible_RejectsStaticBinary hand-crafts a minimal
// ELF64 executable whose only program header is a PT_LOAD: no INTERP, no
// DYNAMIC, so LD_PRELOAD would be silently ignored.
func TestCheckLDPreloadCompatible_RejectsStaticBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static-bin")
	require.NoError(t, os.WriteFile(path, staticELF(t), 0o755))

	err := CheckLDPreloadCompatible(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statically linked")
}

func staticELF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}

	// ELF64 header: 64-bit little-endian executable for x86-64 with one
	// program header directly after the header and no section headers.
	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}
	w(ident)
	w(uint16(2))    // e_type: ET_EXEC
	w(uint16(0x3e)) // e_machine: EM_X86_64
	w(uint32(1))    // e_version
	w(uint64(0))    // e_entry
	w(uint64(64))   // e_phoff
	w(uint64(0))    // e_shoff
	w(uint32(0))    // e_flags
	w(uint16(64))   // e_ehsize
	w(uint16(56))   // e_phentsize
	w(uint16(1))    // e_phnum
	w(uint16(64))   // e_shentsize
	w(uint16(0))    // e_shnum
	w(uint16(0))    // e_shstrndx

	// Program header: a single PT_LOAD.
	w(uint32(1))        // p_type: PT_LOAD
	w(uint32(5))        // p_flags: R+X
	w(uint64(0))        // p_offset
	w(uint64(0x400000)) // p_vaddr
	w(uint64(0x400000)) // p_paddr
	w(uint64(120))      // p_filesz
	w(uint64(120))      // p_memsz
	w(uint64(0x1000))   // p_align

	return buf.Bytes()
}
