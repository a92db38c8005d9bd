package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/annotab/annotab/pkg/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetBody stores a table as a Parquet file with one OPTIONAL field f<i>
// per level and column. Times (nanoseconds) are INT64, dates are RFC 3339
// text and objects are JSON text. The field names and data types are kept in
// the key value metadata under parquetFieldsKey.
type parquetBody struct{}

const (
	parquetFieldsKey = "annotab.fields"
	parquetParallel  = 4
)

type parquetField struct {
	Name  string         `json:"name"`
	DType types.DataType `json:"dtype"`
}

// parquetRowType builds the row struct of a body, e.g.
// struct{ F0 *string `parquet:"name=f0, type=BYTE_ARRAY, ..."` }.
func parquetRowType(dtypes []types.DataType) reflect.Type {
	fields := make([]reflect.StructField, len(dtypes))
	for i, d := range dtypes {
		var goType reflect.Type
		var tag string
		switch d {
		case types.IntType, types.TimeType:
			goType, tag = reflect.TypeOf(int64(0)), "type=INT64"
		case types.FloatType:
			goType, tag = reflect.TypeOf(float64(0)), "type=DOUBLE"
		case types.BoolType:
			goType, tag = reflect.TypeOf(false), "type=BOOLEAN"
		default:
			goType, tag = reflect.TypeOf(""), "type=BYTE_ARRAY, convertedtype=UTF8"
		}
		fields[i] = reflect.StructField{
			Name: fmt.Sprintf("F%d", i),
			Type: reflect.PointerTo(goType),
			Tag:  reflect.StructTag(fmt.Sprintf(`parquet:"name=f%d, %s, repetitiontype=OPTIONAL"`, i, tag)),
		}
	}
	return reflect.StructOf(fields)
}

func (parquetBody) write(ctx context.Context, path string, f *frame) error {
	dtypes := make([]types.DataType, len(f.vectors))
	fields := make([]parquetField, len(f.vectors))
	for i, v := range f.vectors {
		dtypes[i] = v.DType
		fields[i] = parquetField{Name: f.names[i], DType: v.DType}
	}
	rowType := parquetRowType(dtypes)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	pw, err := writer.NewParquetWriterFromWriter(file, reflect.New(rowType).Interface(), parquetParallel)
	if err != nil {
		return fmt.Errorf("error creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for r := 0; r < f.rows(); r++ {
		if r%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := reflect.New(rowType).Elem()
		for i, v := range f.vectors {
			if err := setParquetField(row.Field(i), v.Values[r]); err != nil {
				return fmt.Errorf("field %q row %d: %w", f.names[i], r, err)
			}
		}
		if err := pw.Write(row.Interface()); err != nil {
			return fmt.Errorf("error in pw.Write for row %d: %w", r, err)
		}
	}

	meta, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	value := string(meta)
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, &parquet.KeyValue{
		Key:   parquetFieldsKey,
		Value: &value,
	})
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("error in pw.WriteStop: %w", err)
	}
	return file.Close()
}

func setParquetField(field reflect.Value, v types.Value) error {
	if v.IsNull() {
		return nil
	}
	var native any
	switch v.Type() {
	case types.IntType, types.TimeType:
		native = v.AsInt()
	case types.DateType:
		text, err := types.FormatText(v)
		if err != nil {
			return err
		}
		native = text
	case types.FloatType:
		native = v.AsFloat()
	case types.BoolType:
		native = v.AsBool()
	case types.StringType:
		native = v.AsString()
	default:
		b, err := json.Marshal(v.AsObject())
		if err != nil {
			return fmt.Errorf("failed to marshal object: %w", err)
		}
		native = string(b)
	}
	p := reflect.New(field.Type().Elem())
	p.Elem().Set(reflect.ValueOf(native))
	field.Set(p)
	return nil
}

func (parquetBody) read(ctx context.Context, path string, _ []types.DataType) (*frame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("can't open parquet body: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, parquetParallel)
	if err != nil {
		return nil, fmt.Errorf("error creating parquet reader: %w", err)
	}
	defer pr.ReadStop()

	var fields []parquetField
	for _, kv := range pr.Footer.KeyValueMetadata {
		if kv.Key == parquetFieldsKey && kv.Value != nil {
			if err := json.Unmarshal([]byte(*kv.Value), &fields); err != nil {
				return nil, fmt.Errorf("invalid field metadata: %w", err)
			}
		}
	}
	if fields == nil {
		return nil, fmt.Errorf("parquet body has no %s metadata", parquetFieldsKey)
	}

	f := &frame{names: make([]string, len(fields)), vectors: make([]types.Vector, len(fields))}
	for i, field := range fields {
		if !field.DType.Valid() {
			return nil, fmt.Errorf("field %q: %w: %q", field.Name, types.ErrUnknownDataType, field.DType)
		}
		f.names[i] = field.Name
		f.vectors[i] = types.Vector{DType: field.DType, Values: []types.Value{}}
	}

	num := int(pr.GetNumRows())
	if num == 0 {
		return f, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := pr.ReadByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	for r, row := range rows {
		// row is a struct with one pointer field per level and column
		v := reflect.ValueOf(row)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		if v.NumField() != len(fields) {
			return nil, fmt.Errorf("row %d has %d fields, metadata lists %d", r, v.NumField(), len(fields))
		}
		for i := range fields {
			val, err := parquetDecode(v.Field(i), fields[i].DType)
			if err != nil {
				return nil, fmt.Errorf("field %q row %d: %w", fields[i].Name, r, err)
			}
			f.vectors[i].Values = append(f.vectors[i].Values, val)
		}
	}
	return f, nil
}

func parquetDecode(field reflect.Value, dtype types.DataType) (types.Value, error) {
	for field.Kind() == reflect.Ptr || field.Kind() == reflect.Interface {
		if field.IsNil() {
			return types.Null(), nil
		}
		field = field.Elem()
	}
	switch field.Kind() {
	case reflect.Int64, reflect.Int32:
		n := field.Int()
		switch dtype {
		case types.DateType:
			// integer dates are Unix nanoseconds
			return types.Date(time.Unix(0, n).UTC()), nil
		case types.TimeType:
			return types.Time(time.Duration(n)), nil
		}
		return types.Coerce(types.Int(n), dtype)
	case reflect.Float64, reflect.Float32:
		return types.Coerce(types.Float(field.Float()), dtype)
	case reflect.Bool:
		return types.Coerce(types.Bool(field.Bool()), dtype)
	case reflect.String:
		s := field.String()
		switch dtype {
		case types.ObjectType:
			return types.DecodeObject([]byte(s))
		case types.DateType:
			return types.ParseText(s, dtype)
		}
		return types.Coerce(types.String(s), dtype)
	}
	return types.Value{}, fmt.Errorf("unexpected parquet value of kind %s", field.Kind())
}
