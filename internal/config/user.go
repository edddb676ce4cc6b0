package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// UserConfigPath returns the per-user config location,
// $XDG_CONFIG_HOME/crest/config.toml with the usual fallback.
func UserConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(base, "crest", "config.toml"), nil
}

// LoadUserOverlay reads the optional user-level TOML layer. A missing file
// yields an empty overlay; a malformed one is reported to the caller and
// otherwise ignored.
func LoadUserOverlay() (Overlay, error) {
	path, err := UserConfigPath()
	if err != nil {
		return Overlay{}, err
	}
	return LoadUserOverlayFrom(path)
}

func LoadUserOverlayFrom(path string) (Overlay, error) {
	var overlay Overlay
	if _, err := toml.DecodeFile(path, &overlay); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Overlay{}, nil
		}
		return Overlay{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	resolveOverlayPaths(&overlay, filepath.Dir(path))
	return overlay, nil
}
