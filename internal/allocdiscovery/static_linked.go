package allocdiscovery

import (
	"debug/elf"
	"io/fs"
	"os"
	"path/filepath"
)

// buildDirNames are the build-output directory names to walk upward from
// the working directory looking for.
var buildDirNames = []string{
	filepath.Join("target", "codspeed", "analysis"),
	"bazel-bin",
	"build",
}

// FindBuildDirs walks upward from dir (inclusive) looking for any of
// buildDirNames, returning every one found. Benchmarks are commonly run
// from a subdirectory of the repo root, so a single level of lookup isn't
// enough.
func FindBuildDirs(dir string) []string {
	var found []string
	for {
		for _, name := range buildDirNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				found = append(found, candidate)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return found
}

// FindBinaries walks dir looking for ELF files (executables or shared
// objects that might statically embed an allocator).
func FindBinaries(dir string) ([]string, error) {
	var binaries []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole walk
		}
		if d.IsDir() {
			return nil
		}
		if isELF(path) {
			binaries = append(binaries, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return binaries, nil
}

// FindStaticallyLinked inspects binary's symbol table (and dynamic symbol
// table, for partially-static binaries) for the first allocator kind with
// any of its symbols defined, in Kind.All() order. It returns ok=false if
// none match, which is not itself an error - most binaries link
// dynamically and this is just one discovery path among several.
func FindStaticallyLinked(binary string) (Lib, bool, error) {
	f, err := elf.Open(binary)
	if err != nil {
		return Lib{}, false, nil
	}
	defer f.Close()

	defined := make(map[string]struct{})
	collect := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Section == elf.SHN_UNDEF {
				continue
			}
			defined[s.Name] = struct{}{}
		}
	}
	if syms, err := f.Symbols(); err == nil {
		collect(syms)
	}
	if syms, err := f.DynamicSymbols(); err == nil {
		collect(syms)
	}

	if kind, ok := matchKind(defined); ok {
		return Lib{Kind: kind, Path: binary}, true, nil
	}
	return Lib{}, false, nil
}

// matchKind returns the first allocator kind with at least one of its
// symbols in defined. One symbol is enough: LTO and stripping routinely
// hide parts of a statically linked allocator's symbol set, and a partial
// sighting still identifies the allocator unambiguously.
func matchKind(defined map[string]struct{}) (Kind, bool) {
	for _, kind := range All() {
		for _, sym := range kind.Symbols() {
			if _, ok := defined[sym]; ok {
				return kind, true
			}
		}
	}
	return 0, false
}
