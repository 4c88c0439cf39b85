package artifact

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPath_rejectsSeparatorsAndTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"../etc/passwd", "a/b.opus", "a\\b.opus", "..", "."} {
		if _, err := s.Path(name); err != ErrTraversal {
			t.Errorf("Path(%q) err = %v, want ErrTraversal", name, err)
		}
	}
}

func TestPath_allowsPlainBasename(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.Path("abc123.opus")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(p) != s.Dir {
		t.Errorf("resolved path %q not under %q", p, s.Dir)
	}
}

func TestExistsAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if s.Exists("missing.opus") {
		t.Error("Exists() true for missing file")
	}
	p := filepath.Join(s.Dir, "present.opus")
	if err := os.WriteFile(p, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("present.opus") {
		t.Error("Exists() false for present file")
	}
	size, err := s.Size("present.opus")
	if err != nil || size != 4 {
		t.Errorf("Size() = %d, %v", size, err)
	}
	if err := s.Delete("present.opus"); err != nil {
		t.Fatal(err)
	}
	if s.Exists("present.opus") {
		t.Error("Exists() true after Delete")
	}
}

func TestTotalSize(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"one.opus", "two.opus"} {
		if err := os.WriteFile(filepath.Join(s.Dir, n), make([]byte, 10), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	total, err := s.TotalSize()
	if err != nil {
		t.Fatal(err)
	}
	if total != 20 {
		t.Errorf("TotalSize() = %d, want 20", total)
	}
}

func TestNewFileName_hasOpusSuffix(t *testing.T) {
	name := NewFileName()
	if filepath.Ext(name) != ".opus" {
		t.Errorf("NewFileName() = %q, want .opus suffix", name)
	}
}
