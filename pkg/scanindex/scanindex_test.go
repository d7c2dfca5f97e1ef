package scanindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/homeledger/pkg/types"
)

func TestStoreThenLookupHits(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "bucket.json")
	if err := os.WriteFile(filePath, []byte("[]"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(filePath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	idx, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	scan := map[types.BucketKey][]FileEntry{
		202601: {{Path: filePath, MTime: info.ModTime().Unix()}},
	}
	if err := idx.Store(root, scan); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok := idx.Lookup(root)
	if !ok {
		t.Fatalf("Lookup() ok = false, want true")
	}
	if len(got[202601]) != 1 || got[202601][0].Path != filePath {
		t.Fatalf("Lookup() = %v, want one entry at %s", got, filePath)
	}
}

func TestLookupMissesOnMTimeChange(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "bucket.json")
	if err := os.WriteFile(filePath, []byte("[]"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	idx, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	scan := map[types.BucketKey][]FileEntry{
		202601: {{Path: filePath, MTime: 1}}, // stale on purpose
	}
	if err := idx.Store(root, scan); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, ok := idx.Lookup(root); ok {
		t.Fatalf("Lookup() ok = true, want false on mtime mismatch")
	}
}

func TestLookupMissesWhenNeverStored(t *testing.T) {
	root := t.TempDir()
	idx, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if _, ok := idx.Lookup(root); ok {
		t.Fatalf("Lookup() ok = true, want false for an empty index")
	}
}
