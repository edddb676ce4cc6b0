package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ProjectFileName is the per-repository settings override file.
const ProjectFileName = "crest.json"

// FindProjectFile walks up from startDir to locate crest.json. The walk stops
// after the first directory that contains a .git entry (the repository
// boundary) or at the filesystem root.
func FindProjectFile(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
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
	return "", false, nil
}

// LoadProjectFile parses a crest.json overlay. Relative paths inside the file
// resolve against the file's own directory. A parse failure is the caller's
// problem to report once; it must not be fatal to the session.
func LoadProjectFile(path string) (Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overlay{}, fmt.Errorf("failed to read project config: %w", err)
	}
	var overlay Overlay
	if err := json.Unmarshal(data, &overlay); err != nil {
		return Overlay{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	resolveOverlayPaths(&overlay, filepath.Dir(path))
	return overlay, nil
}

// LoadProjectOverlay discovers and parses the project file for startDir.
// Absence is not an error; the overlay is simply empty.
func LoadProjectOverlay(startDir string) (Overlay, string, error) {
	path, ok, err := FindProjectFile(startDir)
	if err != nil || !ok {
		return Overlay{}, "", err
	}
	overlay, err := LoadProjectFile(path)
	if err != nil {
		return Overlay{}, path, err
	}
	return overlay, path, nil
}

func resolveOverlayPaths(overlay *Overlay, baseDir string) {
	if overlay.CrestHome != nil {
		*overlay.CrestHome = resolveAgainst(baseDir, *overlay.CrestHome)
	}
	if c := overlay.Compiler; c != nil {
		if c.Path != nil {
			*c.Path = resolveCommand(baseDir, *c.Path)
		}
		for i, dir := range c.IncludePaths {
			c.IncludePaths[i] = resolveAgainst(baseDir, dir)
		}
	}
	if a := overlay.Analyzer; a != nil {
		if a.Path != nil {
			*a.Path = resolveCommand(baseDir, *a.Path)
		}
		if a.CompileCommandsDir != nil {
			*a.CompileCommandsDir = resolveAgainst(baseDir, *a.CompileCommandsDir)
		}
	}
}

func resolveAgainst(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// resolveCommand keeps bare command names (resolved via the search path later)
// but anchors explicit relative paths to the project file's directory.
func resolveCommand(baseDir, command string) string {
	if command == "" || filepath.IsAbs(command) {
		return command
	}
	if filepath.Base(command) == command {
		return command
	}
	return filepath.Join(baseDir, command)
}
