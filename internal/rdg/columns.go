package rdg

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/darabos/katana/internal/core/domain"
)

// typeIDColumn is the column name of entity type id arrays.
const typeIDColumn = "entity_type_id"

// Column is a named property column to be written.
type Column struct {
	Name   string
	Values arrow.Array
}

// EncodeColumn writes one column as an Arrow IPC stream.
func EncodeColumn(mem memory.Allocator, name string, values arrow.Array) ([]byte, error) {
	schema := arrow.NewSchema([]arrow.Field{{Name: name, Type: values.DataType(), Nullable: true}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{values}, int64(values.Len()))
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, fmt.Errorf("rdg: write column %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("rdg: close column %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// DecodeColumn reads an Arrow IPC stream holding exactly one column with
// wantRows rows. Any other shape is reported as domain.ErrCorrupt.
func DecodeColumn(mem memory.Allocator, data []byte, name string, wantRows uint64) (arrow.Table, error) {
	corrupt := func(format string, args ...any) error {
		return domain.ErrCorrupt.WithDetailf("column %q: "+format, append([]any{name}, args...)...)
	}

	rdr, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, corrupt("open stream: %v", err)
	}
	defer rdr.Release()

	schema := rdr.Schema()
	if len(schema.Fields()) != 1 {
		return nil, corrupt("stream has %d columns, want 1", len(schema.Fields()))
	}
	if got := schema.Field(0).Name; got != name {
		return nil, corrupt("stream column is named %q", got)
	}

	var recs []arrow.Record
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, corrupt("read stream: %v", err)
	}

	tbl := array.NewTableFromRecords(schema, recs)
	if uint64(tbl.NumRows()) != wantRows {
		rows := tbl.NumRows()
		tbl.Release()
		return nil, corrupt("%d rows, want %d", rows, wantRows)
	}
	return tbl, nil
}

// BoolColumn returns the values of a boolean column table; nulls read as
// false.
func BoolColumn(tbl arrow.Table) ([]bool, error) {
	if tbl.NumCols() != 1 {
		return nil, domain.ErrCorrupt.WithDetailf("boolean table has %d columns", tbl.NumCols())
	}
	out := make([]bool, 0, tbl.NumRows())
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		b, ok := chunk.(*array.Boolean)
		if !ok {
			return nil, domain.ErrCorrupt.WithDetailf("column %q has type %s, want bool", tbl.Schema().Field(0).Name, chunk.DataType())
		}
		for i := 0; i < b.Len(); i++ {
			out = append(out, b.IsValid(i) && b.Value(i))
		}
	}
	return out, nil
}

// EncodeTypeIDs writes an entity type id array at the given width.
func EncodeTypeIDs(mem memory.Allocator, ids []uint32, width int) ([]byte, error) {
	switch width {
	case TypeIDWidth16:
		b := array.NewUint16Builder(mem)
		defer b.Release()
		b.Reserve(len(ids))
		for i, id := range ids {
			if id > 0xffff {
				return nil, domain.ErrInvariantViolation.WithDetailf("entity type id %d at %d does not fit 16 bits", id, i)
			}
			b.UnsafeAppend(uint16(id))
		}
		arr := b.NewArray()
		defer arr.Release()
		return EncodeColumn(mem, typeIDColumn, arr)
	case TypeIDWidth32:
		b := array.NewUint32Builder(mem)
		defer b.Release()
		b.AppendValues(ids, nil)
		arr := b.NewArray()
		defer arr.Release()
		return EncodeColumn(mem, typeIDColumn, arr)
	default:
		return nil, domain.ErrInvalidArgument.WithDetailf("entity type id width %d", width)
	}
}

// DecodeTypeIDs reads an entity type id array and widens it to uint32.
// A 16-bit array is accepted under either width marker; a 32-bit array
// under the 16-bit marker is corrupt.
func DecodeTypeIDs(mem memory.Allocator, data []byte, width int, wantRows uint64) ([]uint32, error) {
	tbl, err := DecodeColumn(mem, data, typeIDColumn, wantRows)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	out := make([]uint32, 0, wantRows)
	for _, chunk := range tbl.Column(0).Data().Chunks() {
		switch a := chunk.(type) {
		case *array.Uint16:
			for _, v := range a.Uint16Values() {
				out = append(out, uint32(v))
			}
		case *array.Uint32:
			if width != TypeIDWidth32 {
				return nil, domain.ErrCorrupt.WithDetailf("32-bit entity type ids under width marker %d", width)
			}
			out = append(out, a.Uint32Values()...)
		default:
			return nil, domain.ErrCorrupt.WithDetailf("entity type ids have type %s", chunk.DataType())
		}
	}
	return out, nil
}
