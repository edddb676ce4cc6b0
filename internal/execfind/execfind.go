// Package execfind locates external tool executables by name or path. All
// probes are read-only filesystem stats, so resolution is deterministic for an
// unchanged environment.
package execfind

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolve returns the absolute path of the executable behind command, or
// ok=false when nothing matches.
//
// Resolution order: expand a leading ~, accept absolute paths that exist (and
// carry an execute bit on POSIX), otherwise walk the PATH directories in
// order, trying each Windows executable extension when the command has none.
func Resolve(command string) (string, bool) {
	return resolve(command, os.Getenv("PATH"), runtime.GOOS == "windows")
}

func resolve(command, searchPath string, windows bool) (string, bool) {
	if command == "" {
		return "", false
	}
	command = expandHome(command)
	if filepath.IsAbs(command) || strings.ContainsRune(command, os.PathSeparator) || strings.ContainsRune(command, '/') {
		if abs, err := filepath.Abs(command); err == nil {
			command = abs
		}
		if isExecutable(command, windows) {
			return command, true
		}
		return "", false
	}
	extensions := candidateExtensions(command, windows)
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			continue
		}
		for _, ext := range extensions {
			candidate := filepath.Join(dir, command+ext)
			if isExecutable(candidate, windows) {
				if abs, err := filepath.Abs(candidate); err == nil {
					candidate = abs
				}
				return candidate, true
			}
		}
	}
	return "", false
}

func expandHome(command string) string {
	if command != "~" && !strings.HasPrefix(command, "~/") && !strings.HasPrefix(command, "~"+string(os.PathSeparator)) {
		return command
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return command
	}
	if command == "~" {
		return home
	}
	return filepath.Join(home, command[2:])
}

// candidateExtensions returns the suffixes to try per directory. On Windows
// the PATHEXT list applies unless the command already has an extension; on
// POSIX only the bare name is probed.
func candidateExtensions(command string, windows bool) []string {
	if !windows {
		return []string{""}
	}
	if filepath.Ext(command) != "" {
		return []string{""}
	}
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	parts := strings.Split(pathext, ";")
	exts := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, strings.ToLower(part))
	}
	if len(exts) == 0 {
		exts = []string{""}
	}
	return exts
}

func isExecutable(path string, windows bool) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if windows {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
