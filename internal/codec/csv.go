package codec

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/annotab/annotab/pkg/types"
)

// csvBody stores a table as CSV: a row of field names followed by one row
// per index row, every cell in the text encoding of its data type. The empty
// cell is missing, so empty strings do not survive a round trip.
type csvBody struct{}

func (csvBody) write(ctx context.Context, path string, f *frame) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(f.names); err != nil {
		return err
	}
	record := make([]string, len(f.vectors))
	for r := 0; r < f.rows(); r++ {
		if r%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for i, v := range f.vectors {
			cell, err := types.FormatText(v.Values[r])
			if err != nil {
				return fmt.Errorf("field %q row %d: %w", f.names[i], r, err)
			}
			record[i] = cell
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

func (csvBody) read(ctx context.Context, path string, dtypes []types.DataType) (*frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}
	names := records[0]
	if len(names) != len(dtypes) {
		return nil, fmt.Errorf("%s has %d fields, header lists %d", path, len(names), len(dtypes))
	}
	rows := records[1:]
	f := &frame{names: names, vectors: make([]types.Vector, len(names))}
	for i := range names {
		dtype := dtypes[i]
		if dtype == "" {
			dtype = types.ObjectType
		}
		values := make([]types.Value, len(rows))
		for r, record := range rows {
			v, err := types.ParseText(record[i], dtype)
			if err != nil {
				return nil, fmt.Errorf("field %q row %d: %w", names[i], r, err)
			}
			values[r] = v
		}
		f.vectors[i] = types.Vector{DType: dtype, Values: values}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return f, nil
}
