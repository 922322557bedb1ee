package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
}

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(testKey())
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, err := s.Seal("strava-access-token")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatalf("expected sealed prefix, got %q", sealed)
	}

	again, err := s.Seal(sealed)
	if err != nil {
		t.Fatalf("Seal sealed: %v", err)
	}
	if again != sealed {
		t.Error("sealing twice must be a no-op")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "strava-access-token" {
		t.Errorf("Open() = %q", opened)
	}
}

func TestOpenPlaintextPassthrough(t *testing.T) {
	s, err := NewSealer(testKey())
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	got, err := s.Open("legacy-token")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "legacy-token" {
		t.Errorf("Open() = %q, want passthrough", got)
	}

	empty, err := s.Seal("")
	if err != nil || empty != "" {
		t.Errorf("Seal(\"\") = %q, %v", empty, err)
	}
}

func TestNewSealerRejectsBadKeys(t *testing.T) {
	if _, err := NewSealer(""); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewSealer("not base64!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewSealer(short); err == nil {
		t.Error("expected error for short key")
	}
}
