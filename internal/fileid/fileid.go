// Package fileid identifies file contents with a stable digest.
package fileid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const prefix = "sha256:"

// Fingerprint returns a digest over the contents of the given files, in order. Each file's
// cleaned path and length are mixed in, so swapping two files' contents changes the result.
func Fingerprint(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		if err := writeFile(h, filepath.Clean(p)); err != nil {
			return "", err
		}
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}

func writeFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", path, err)
	}
	_, _ = io.WriteString(w, path)
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(info.Size()))
	_, _ = w.Write(size[:])
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return nil
}
