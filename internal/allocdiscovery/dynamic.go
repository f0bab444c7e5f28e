package allocdiscovery

import (
	"fmt"
	"path/filepath"
)

// globPatterns lists, per allocator kind, the shared-library glob patterns
// across common distro layouts: Debian/Ubuntu multiarch, RHEL/Fedora/Arch,
// and Nix.
var globPatterns = map[Kind][]string{
	Libc: {
		"/lib/*-linux-gnu/libc.so*",
		"/lib*/libc.so*",
		"/nix/store/*libc*/lib/libc.so*",
	},
	LibCpp: {
		"/lib/*-linux-gnu/libstdc++.so*",
		"/lib*/libstdc++.so*",
		"/nix/store/*gcc*/lib/libstdc++.so*",
	},
	Jemalloc: {
		"/lib/*-linux-gnu/libjemalloc.so*",
		"/lib*/libjemalloc.so*",
		"/nix/store/*jemalloc*/lib/libjemalloc.so*",
	},
	Mimalloc: {
		"/lib/*-linux-gnu/libmimalloc.so*",
		"/lib*/libmimalloc.so*",
		"/nix/store/*mimalloc*/lib/libmimalloc.so*",
	},
}

// FindDynamic globs the well-known shared-library locations for every
// allocator kind, canonicalizing and deduplicating hits, and filtering out
// anything that isn't actually an ELF file (a glob like libc.so* can also
// match a stray .conf or symlink target that resolved oddly).
//
// It returns an error if Libc - the one required kind - isn't found
// anywhere; missing optional allocators are simply absent from the result.
func FindDynamic() ([]Lib, error) {
	var libs []Lib
	for _, kind := range All() {
		found, err := findKind(kind)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 && kind.IsRequired() {
			return nil, fmt.Errorf("allocdiscovery: could not find required allocator: %s", kind)
		}
		libs = append(libs, found...)
	}
	return libs, nil
}

func findKind(kind Kind) ([]Lib, error) {
	seen := make(map[string]struct{})
	var libs []Lib
	for _, pattern := range globPatterns[kind] {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("allocdiscovery: glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			real, err := filepath.EvalSymlinks(m)
			if err != nil {
				continue
			}
			if _, dup := seen[real]; dup {
				continue
			}
			if !isELF(real) {
				continue
			}
			seen[real] = struct{}{}
			libs = append(libs, Lib{Kind: kind, Path: real})
		}
	}
	return libs, nil
}
