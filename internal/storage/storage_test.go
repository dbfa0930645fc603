package storage

import (
	"io"
	"strings"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	key, err := store.Save("policies/42/cover-note.pdf", strings.NewReader("cover note body"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if key != "policies/42/cover-note.pdf" {
		t.Errorf("stored key = %q", key)
	}

	f, err := store.Open(key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "cover note body" {
		t.Errorf("content = %q", body)
	}

	if err := store.Remove(key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Open(key); err == nil {
		t.Error("removed file still opens")
	}
	// Removing an already-removed key is not an error.
	if err := store.Remove(key); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestLocalStorageKeysStayUnderBase(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocal(base)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	// Escaping keys are either rejected or re-rooted under the base dir;
	// either way nothing outside base is touched.
	key, err := store.Save("../../etc/escape.txt", strings.NewReader("x"))
	if err == nil {
		f, openErr := store.Open(key)
		if openErr != nil {
			t.Fatalf("Open after Save: %v", openErr)
		}
		f.Close()
	}

	for _, bad := range []string{"", ".", "..", "../.."} {
		if _, err := store.Save(bad, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) accepted an empty-resolving key", bad)
		}
	}
}
