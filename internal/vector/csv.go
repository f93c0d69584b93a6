package vector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadVectorsCSV reads rows of the form "id,v1,v2,...". A first row whose second field is not a
// number is taken as a header and skipped. Every row must have the same number of values.
func ReadVectorsCSV(r io.Reader) ([]string, [][]float32, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var ids []string
	var vectors [][]float32
	dim := -1
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read vector csv: %w", err)
		}
		if len(rec) < 2 {
			return nil, nil, fmt.Errorf("row %d: want an id and at least one value", row)
		}
		if row == 1 {
			if _, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 32); err != nil {
				continue
			}
		}
		if dim == -1 {
			dim = len(rec) - 1
		} else if len(rec)-1 != dim {
			return nil, nil, fmt.Errorf("row %d: got %d values, expected %d", row, len(rec)-1, dim)
		}
		vec := make([]float32, dim)
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", row, j+2, err)
			}
			vec[j] = float32(v)
		}
		ids = append(ids, strings.TrimSpace(rec[0]))
		vectors = append(vectors, vec)
	}
	return ids, vectors, nil
}
