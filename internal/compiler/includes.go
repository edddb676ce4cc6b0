package compiler

import (
	"os"
	"path/filepath"

	"crest/internal/config"
)

// includeDirName is the conventional project-local header folder.
const includeDirName = "include"

// IncludeDirs collects the include directories for a compile of filePath:
// the file's own directory, a project-local include/ folder discovered by
// walking upward to the repository boundary, and the configured paths.
// Duplicates are removed while preserving first-seen order.
func IncludeDirs(filePath string, settings config.Settings) []string {
	dirs := make([]string, 0, 2+len(settings.Compiler.IncludePaths))
	own := filepath.Dir(filePath)
	dirs = append(dirs, own)
	if discovered, ok := findProjectInclude(own); ok {
		dirs = append(dirs, discovered)
	}
	dirs = append(dirs, settings.Compiler.IncludePaths...)

	seen := make(map[string]struct{}, len(dirs))
	out := dirs[:0]
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		clean := filepath.Clean(dir)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// IncludeFlags renders one single-token -I<dir> argument per directory.
// A bare -I followed by a separate argument would be a different compile.
func IncludeFlags(dirs []string) []string {
	flags := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		flags = append(flags, "-I"+dir)
	}
	return flags
}

// findProjectInclude walks up from startDir looking for an include/ folder,
// stopping after the repository boundary.
func findProjectInclude(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, includeDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
