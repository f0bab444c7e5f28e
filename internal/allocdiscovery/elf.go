package allocdiscovery

import "os"

var elfMagic = [4]byte{0x7f, 'E', 'L', 'F'}

// isELF reports whether path's first four bytes are the ELF magic number,
// a cheap check to skip symlink farms and non-library files a glob
// pattern happens to also match.
func isELF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var hdr [4]byte
	if _, err := f.Read(hdr[:]); err != nil {
		return false
	}
	return hdr == elfMagic
}
