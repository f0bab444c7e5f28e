// Package preload implements the valgrind-measurement-mode sibling of
// exec-harness: checking an executable is dynamically linked, materializing
// an embedded shim library to a temp file, and injecting it via
// LD_PRELOAD.
package preload

import (
	"debug/elf"
	"fmt"
	"os"
	"os/exec"
)

// CheckLDPreloadCompatible verifies executable is a dynamically linked
// ELF binary - LD_PRELOAD has no effect on a static binary, so this check
// runs before a valgrind-mode measurement is attempted at all.
func CheckLDPreloadCompatible(executable string) error {
	path, err := exec.LookPath(executable)
	if err != nil {
		return fmt.Errorf("preload: resolve %q: %w", executable, err)
	}

	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("preload: %s is not an ELF binary: %w", path, err)
	}
	defer f.Close()

	var hasInterp, hasDynamic bool
	for _, prog := range f.Progs {
		switch prog.Type {
		case elf.PT_INTERP:
			hasInterp = true
		case elf.PT_DYNAMIC:
			hasDynamic = true
		}
	}
	if !hasInterp && !hasDynamic {
		return fmt.Errorf(
			"preload: %s is a statically linked executable, which LD_PRELOAD cannot affect; "+
				"use a dynamically linked executable, a different measurement mode, "+
				"or one of the framework benchmark integrations instead", path)
	}
	return nil
}

// MaterializePreloadLib writes data (the embedded shim library contents)
// to a fresh temp file and returns its path. The caller owns the file's
// lifetime and should remove it once the measured process has exited -
// the file needs to outlive the process it's preloaded into, so it can't
// simply be a deferred-removal temp file local to this call.
func MaterializePreloadLib(data []byte) (string, error) {
	f, err := os.CreateTemp("", "tracecore-preload-*.so")
	if err != nil {
		return "", fmt.Errorf("preload: create temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("preload: write shim library: %w", err)
	}
	if err := f.Chmod(0o755); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("preload: chmod shim library: %w", err)
	}
	return f.Name(), nil
}

// Inject appends libPath to the LD_PRELOAD entries already present in env
// (a []string in os/exec.Cmd.Env form), returning the updated slice.
func Inject(env []string, libPath string) []string {
	const key = "LD_PRELOAD="
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if len(kv) >= len(key) && kv[:len(key)] == key {
			out = append(out, kv+" "+libPath)
			found = true
			continue
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, key+libPath)
	}
	return out
}
