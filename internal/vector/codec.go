package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Header and id bounds keep a corrupt file from forcing huge allocations.
const (
	maxIDLen      = 1 << 16
	maxDimensions = 1 << 20
	maxPrealloc   = 1 << 16
)

// WriteVectors encodes rows to w. Format (little endian): dimension (4), n (4),
// then per row: idLen (4), id bytes, vector (dimension*4 bytes).
func WriteVectors(w io.Writer, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(dim)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range ids {
		if len(vectors[i]) != dim {
			return fmt.Errorf("vector dimension mismatch at row %d: got %d, expected %d", i, len(vectors[i]), dim)
		}
		if len(id) > maxIDLen {
			return fmt.Errorf("id too long at row %d", i)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := bw.WriteString(id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := bw.Write(float32SliceToBytes(vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return bw.Flush()
}

// ReadVectors decodes rows written by WriteVectors.
func ReadVectors(r io.Reader) ([]string, [][]float32, error) {
	br := bufio.NewReader(r)
	var dim, n uint32
	if err := binary.Read(br, binary.LittleEndian, &dim); err != nil {
		return nil, nil, fmt.Errorf("read dimensions: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("read count: %w", err)
	}
	if n > 0 && dim == 0 {
		return nil, nil, fmt.Errorf("corrupt vector file: %d rows with zero dimension", n)
	}
	if dim > maxDimensions {
		return nil, nil, fmt.Errorf("corrupt vector file: dimension %d exceeds %d", dim, maxDimensions)
	}
	// rows beyond the preallocation grow by append; a lying count ends in a read error
	ids := make([]string, 0, min(n, maxPrealloc))
	vectors := make([][]float32, 0, min(n, maxPrealloc))
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(br, binary.LittleEndian, &idLen); err != nil {
			return nil, nil, fmt.Errorf("read id len at row %d: %w", i, err)
		}
		if idLen > maxIDLen {
			return nil, nil, fmt.Errorf("corrupt vector file: id length %d at row %d", idLen, i)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(br, idBytes); err != nil {
			return nil, nil, fmt.Errorf("read id at row %d: %w", i, err)
		}
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, nil, fmt.Errorf("read vector at row %d: %w", i, err)
		}
		ids = append(ids, string(idBytes))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return ids, vectors, nil
}

// SaveFile writes rows to path, creating parent directories. A ".zst" suffix enables zstd compression.
func SaveFile(path string, ids []string, vectors [][]float32) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create vector dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close vector file: %w", cerr)
		}
	}()
	if !isCompressed(path) {
		return WriteVectors(f, ids, vectors)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := WriteVectors(enc, ids, vectors); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush zstd writer: %w", err)
	}
	return nil
}

// LoadFile reads rows from path, decompressing ".zst" files.
func LoadFile(path string) ([]string, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()
	if !isCompressed(path) {
		return ReadVectors(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()
	return ReadVectors(dec)
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
