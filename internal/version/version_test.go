package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestVersionIsPlain(t *testing.T) {
	if Version == "" {
		t.Fatal("Version must have a default value")
	}
	if strings.Contains(Version, "\x1b") {
		t.Fatalf("Version carries escape codes: %q", Version)
	}
}

func TestColoredKeepsComponents(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()
	if got := Colored(); got != Version {
		t.Fatalf("Colored with colors off should equal Version: %q vs %q", got, Version)
	}
}
