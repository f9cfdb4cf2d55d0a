package hashing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStableJSONIsOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "nested": map[string]any{"z": 0, "y": 1}}
	b := map[string]any{"nested": map[string]any{"y": 1, "z": 0}, "a": 2, "b": 1}

	ja, err := StableJSON(a)
	if err != nil {
		t.Fatalf("StableJSON(a): %v", err)
	}
	jb, err := StableJSON(b)
	if err != nil {
		t.Fatalf("StableJSON(b): %v", err)
	}
	if string(ja) != string(jb) {
		t.Errorf("canonical bytes differ:\n%s\n%s", ja, jb)
	}

	ha, err := ShortHash(a, 10)
	if err != nil {
		t.Fatalf("ShortHash(a): %v", err)
	}
	hb, err := ShortHash(b, 10)
	if err != nil {
		t.Fatalf("ShortHash(b): %v", err)
	}
	if ha != hb {
		t.Errorf("ShortHash = %q vs %q, want equal", ha, hb)
	}
	if len(ha) != 10 {
		t.Errorf("len(ShortHash) = %d, want 10", len(ha))
	}
}

func TestStableJSONSortsKeys(t *testing.T) {
	got, err := StableJSON(map[string]any{"b": 1, "a": "x"})
	if err != nil {
		t.Fatalf("StableJSON: %v", err)
	}
	want := `{"a":"x","b":1}`
	if string(got) != want {
		t.Errorf("StableJSON = %s, want %s", got, want)
	}
}

func TestStableJSONHandlesStructs(t *testing.T) {
	type inner struct {
		Z int `json:"z"`
		A int `json:"a"`
	}
	got, err := StableJSON(struct {
		Name  string `json:"name"`
		Inner inner  `json:"inner"`
	}{Name: "h2", Inner: inner{Z: 1, A: 2}})
	if err != nil {
		t.Fatalf("StableJSON: %v", err)
	}
	want := `{"inner":{"a":2,"z":1},"name":"h2"}`
	if string(got) != want {
		t.Errorf("StableJSON = %s, want %s", got, want)
	}
}

func TestStableJSONPreservesNumberText(t *testing.T) {
	// 1e-8 must not be rewritten as 0.00000001 or lose precision.
	got, err := StableJSON(map[string]any{"tol": 1e-8})
	if err != nil {
		t.Fatalf("StableJSON: %v", err)
	}
	want := `{"tol":1e-8}`
	if string(got) != want {
		t.Errorf("StableJSON = %s, want %s", got, want)
	}
}

func TestSHA256FileChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.txt")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File: %v", err)
	}
	if err := os.WriteFile(path, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	h2, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File: %v", err)
	}
	if h1 == h2 {
		t.Error("hash did not change with content")
	}
}

func TestSHA256FileMissing(t *testing.T) {
	if _, err := SHA256File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
