package buildinfo

import (
	"testing"
)

func TestBinaryVersionDefault(t *testing.T) {
	if BinaryVersion != "dev" {
		t.Errorf("Expected BinaryVersion to be 'dev', got '%s'", BinaryVersion)
	}
}

func TestVersionPrefersLdflags(t *testing.T) {
	saved := BinaryVersion
	t.Cleanup(func() { BinaryVersion = saved })

	BinaryVersion = "v9.9.9"
	if got := Version(); got != "v9.9.9" {
		t.Errorf("Version() = %q, want v9.9.9", got)
	}
}

func TestVersionNeverEmpty(t *testing.T) {
	if Version() == "" {
		t.Error("Version() should never be empty")
	}
}
