package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDateAcceptsDecimal(t *testing.T) {
	d, err := parseDate("20260115")
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if int64(d) != 20260115 {
		t.Fatalf("parseDate() = %d, want 20260115", d)
	}
}

func TestParseDateRejectsNonNumeric(t *testing.T) {
	if _, err := parseDate("not-a-date"); err == nil {
		t.Fatal("parseDate() = nil error, want failure")
	}
}

func TestSourceDatesAreDirectoriesDetectsJSONShape(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dates", "202601"), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	isJSON, err := sourceDatesAreDirectories(root)
	if err != nil {
		t.Fatalf("sourceDatesAreDirectories: %v", err)
	}
	if !isJSON {
		t.Fatal("sourceDatesAreDirectories() = false, want true for directory shape")
	}
}

func TestSourceDatesAreDirectoriesDetectsBinaryShape(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dates"), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "dates", "202601.bin"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	isJSON, err := sourceDatesAreDirectories(root)
	if err != nil {
		t.Fatalf("sourceDatesAreDirectories: %v", err)
	}
	if isJSON {
		t.Fatal("sourceDatesAreDirectories() = true, want false for flat-file shape")
	}
}

func TestSourceDatesAreDirectoriesMissingDefaultsToJSON(t *testing.T) {
	root := t.TempDir()

	isJSON, err := sourceDatesAreDirectories(root)
	if err != nil {
		t.Fatalf("sourceDatesAreDirectories: %v", err)
	}
	if !isJSON {
		t.Fatal("sourceDatesAreDirectories() = false, want true when dates is absent")
	}
}

func TestDestHasDataFalseWhenAbsent(t *testing.T) {
	root := t.TempDir()

	hasData, err := destHasData(root)
	if err != nil {
		t.Fatalf("destHasData: %v", err)
	}
	if hasData {
		t.Fatal("destHasData() = true, want false for an empty destination")
	}
}

func TestDestHasDataTrueWhenPopulated(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dates", "202601"), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	hasData, err := destHasData(root)
	if err != nil {
		t.Fatalf("destHasData: %v", err)
	}
	if !hasData {
		t.Fatal("destHasData() = false, want true for a populated destination")
	}
}
