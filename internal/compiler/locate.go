package compiler

import (
	"os"
	"path/filepath"

	"crest/internal/config"
	"crest/internal/execfind"
)

// CompilerName is the batch compiler binary.
const CompilerName = "crestc"

// HomeEnv communicates the Crest installation root to subprocesses.
const HomeEnv = "CREST_HOME"

var fallbackInstallDirs = []string{
	"/opt/crest/bin",
	"/usr/local/crest/bin",
}

// Locate resolves the crestc executable. Candidates are tried in order: the
// configured path, conventional subdirectories of the installation root
// (settings first, then the environment), and the fixed fallback install
// locations. When nothing resolves the raw configured string is returned with
// ok=false so that the eventual spawn surfaces the failure itself.
func Locate(settings config.Settings) (string, bool) {
	candidates := make([]string, 0, 8)
	if settings.Compiler.Path != "" {
		candidates = append(candidates, settings.Compiler.Path)
	}
	for _, home := range []string{settings.CrestHome, os.Getenv(HomeEnv)} {
		if home == "" {
			continue
		}
		candidates = append(candidates,
			filepath.Join(home, "bin", CompilerName),
			filepath.Join(home, "tools", "bin", CompilerName),
		)
	}
	for _, dir := range fallbackInstallDirs {
		candidates = append(candidates, filepath.Join(dir, CompilerName))
	}
	for _, candidate := range candidates {
		if resolved, ok := execfind.Resolve(candidate); ok {
			return resolved, true
		}
	}
	raw := settings.Compiler.Path
	if raw == "" {
		raw = CompilerName
	}
	return raw, false
}
