package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestReadJSON_Missing(t *testing.T) {
	var d doc
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &d)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ok {
		t.Error("ReadJSON reported a missing file as present")
	}
}

func TestWriteThenReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	if err := WriteJSON(path, doc{Name: "memory", Count: 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got doc
	ok, err := ReadJSON(path, &got)
	if err != nil || !ok {
		t.Fatalf("ReadJSON: ok=%v err=%v", ok, err)
	}
	if got.Name != "memory" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the document in dir, found %d entries", len(entries))
	}
}

func TestReadJSON_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	var d doc
	if _, err := ReadJSON(path, &d); err == nil {
		t.Error("expected parse error")
	}
}
