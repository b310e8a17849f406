package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cache.json")

	if err := WriteFileAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected second, got %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestWriteFileAtomicLeavesTargetOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	if err := os.WriteFile(path, []byte("keep"), 0644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	// A directory where the parent should be makes temp creation fail.
	bad := filepath.Join(path, "child.json")
	if err := WriteFileAtomic(bad, []byte("x"), 0644); err == nil {
		t.Fatalf("expected error writing below a regular file")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "keep" {
		t.Fatalf("expected original content, got %q", data)
	}
}

func TestWriteIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	wrote, err := WriteIfMissing(path, []byte("a"), 0644)
	if err != nil || !wrote {
		t.Fatalf("expected first write, got wrote=%v err=%v", wrote, err)
	}
	wrote, err = WriteIfMissing(path, []byte("b"), 0644)
	if err != nil || wrote {
		t.Fatalf("expected skip, got wrote=%v err=%v", wrote, err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "a" {
		t.Fatalf("expected original content, got %q", data)
	}
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "output.txt")
	for _, chunk := range []string{"one\n", "two\n"} {
		if err := AppendFile(path, []byte(chunk)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != "one\ntwo\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestSplitLines(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "a", want: []string{"a"}},
		{in: "a\n", want: []string{"a"}},
		{in: "a\r\nb\r\n", want: []string{"a", "b"}},
		{in: "a\n\nb", want: []string{"a", "", "b"}},
	}

	for _, tc := range cases {
		got := SplitLines([]byte(tc.in))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("SplitLines(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestMapKeysSorted(t *testing.T) {
	set := map[string]bool{"y": true, "x": true}
	if got := MapKeysSorted(set); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("MapKeysSorted = %v", got)
	}
}

func TestWriteJSONL(t *testing.T) {
	type row struct {
		Path string `json:"path"`
	}
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, []row{{Path: "a<b>.py"}, {Path: "c.py"}}); err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}
	want := "{\"path\":\"a<b>.py\"}\n{\"path\":\"c.py\"}\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
