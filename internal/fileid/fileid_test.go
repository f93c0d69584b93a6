package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "movies.csv")
	write(t, a, "id,title\n1,Alien\n")

	fp1, err := Fingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	fp2, err := Fingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	if fp1 != fp2 {
		t.Errorf("same content should give same fingerprint: %q vs %q", fp1, fp2)
	}
	if !strings.HasPrefix(fp1, prefix) {
		t.Errorf("fingerprint should have prefix %q: got %q", prefix, fp1)
	}
}

func TestFingerprint_ContentChange(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "movies.csv")
	write(t, a, "id,title\n1,Alien\n")
	before, _ := Fingerprint(a)
	write(t, a, "id,title\n1,Aliens\n")
	after, _ := Fingerprint(a)
	if before == after {
		t.Error("changed content should change the fingerprint")
	}
}

func TestFingerprint_SwappedContents(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	write(t, a, "x")
	write(t, b, "y")
	first, _ := Fingerprint(a, b)
	write(t, a, "y")
	write(t, b, "x")
	second, _ := Fingerprint(a, b)
	if first == second {
		t.Error("swapping contents between files should change the fingerprint")
	}
}

func TestFingerprint_MissingFile(t *testing.T) {
	if _, err := Fingerprint(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
