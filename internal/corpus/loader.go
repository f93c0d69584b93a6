package corpus

import (
	"context"
	"fmt"

	"github.com/hyperjump/ruiji/internal/fileid"
	"github.com/hyperjump/ruiji/internal/vector"
)

// Loader produces a fresh snapshot from its source.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// FileLoader loads a metadata CSV and a vector file (.bin or .bin.zst) from disk.
type FileLoader struct {
	MetadataPath string
	VectorsPath  string
}

// NewFileLoader returns a loader for the given paths.
func NewFileLoader(metadataPath, vectorsPath string) *FileLoader {
	return &FileLoader{MetadataPath: metadataPath, VectorsPath: vectorsPath}
}

// Load reads both files and validates their alignment.
func (l *FileLoader) Load(ctx context.Context) (*Snapshot, error) {
	movies, err := LoadMetadataFile(l.MetadataPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, vectors, err := vector.LoadFile(l.VectorsPath)
	if err != nil {
		return nil, err
	}
	snap, err := NewSnapshot(movies, ids, vectors)
	if err != nil {
		return nil, fmt.Errorf("build snapshot from %s and %s: %w", l.MetadataPath, l.VectorsPath, err)
	}
	fp, err := fileid.Fingerprint(l.MetadataPath, l.VectorsPath)
	if err != nil {
		return nil, err
	}
	snap.Fingerprint = fp
	return snap, nil
}

// Paths returns the files the loader reads.
func (l *FileLoader) Paths() []string {
	return []string{l.MetadataPath, l.VectorsPath}
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*Snapshot, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}
