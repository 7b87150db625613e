package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDirectoryYAML = `service_centers:
  - name: VehicleCare Certified Center - Downtown
    phone: "+1-555-0101"
    address: 123 Main Street, Downtown
    hours: 8:00 AM - 6:00 PM
  - name: VehicleCare Certified Center - Uptown
    phone: "+1-555-0102"
    address: 456 Oak Avenue, Uptown
    hours: 8:00 AM - 6:00 PM
  - name: ""
    phone: "+1-555-0199"
`

func writeTempDirectory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write directory file: %v", err)
	}
	return path
}

func TestLoadDirectory(t *testing.T) {
	dir, err := LoadDirectory(writeTempDirectory(t, sampleDirectoryYAML))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dir.Len() != 2 {
		t.Fatalf("expected 2 usable centers, got %d", dir.Len())
	}
	center, ok := dir.Resolve("VehicleCare Certified Center - Downtown")
	if !ok {
		t.Fatal("expected downtown center to resolve")
	}
	if center.Phone != "+1-555-0101" {
		t.Fatalf("unexpected phone: %s", center.Phone)
	}
	if center.Hours != "8:00 AM - 6:00 PM" {
		t.Fatalf("unexpected hours: %s", center.Hours)
	}
}

func TestLoadDirectory_MissingFile(t *testing.T) {
	if _, err := LoadDirectory(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDirectory_Empty(t *testing.T) {
	if _, err := LoadDirectory(writeTempDirectory(t, "service_centers: []\n")); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
