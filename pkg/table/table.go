package table

import (
	"fmt"
	"time"
)

// Schema describes the logical shape of a dataset.
type Schema struct {
	Columns []ColumnSchema
}

type ColumnSchema struct {
	Name     string
	Type     Kind
	Nullable bool
}

// Kind enumerates supported logical types.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	}
	return "invalid"
}

// Column is a typed, nullable column.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	IsNull(i int) bool

	appendNull()
	cell(i int) (any, bool)
	setAny(i int, v any) error
}

// Col holds the values and null mask for one column.
type Col[T any] struct {
	name  string
	kind  Kind
	data  []T
	nulls []bool
}

func (c *Col[T]) Name() string      { return c.name }
func (c *Col[T]) Kind() Kind        { return c.kind }
func (c *Col[T]) Len() int          { return len(c.data) }
func (c *Col[T]) IsNull(i int) bool { return c.nulls[i] }

// Get returns the value at i and whether it is non-null.
func (c *Col[T]) Get(i int) (T, bool) { return c.data[i], !c.nulls[i] }

func (c *Col[T]) Set(i int, v T) {
	c.data[i] = v
	c.nulls[i] = false
}

func (c *Col[T]) SetNull(i int) {
	var zero T
	c.data[i] = zero
	c.nulls[i] = true
}

func (c *Col[T]) appendNull() {
	var zero T
	c.data = append(c.data, zero)
	c.nulls = append(c.nulls, true)
}

func (c *Col[T]) cell(i int) (any, bool) {
	if c.nulls[i] {
		return nil, false
	}
	return c.data[i], true
}

func (c *Col[T]) setAny(i int, v any) error {
	if v == nil {
		c.SetNull(i)
		return nil
	}
	t, err := coerce[T](c, v)
	if err != nil {
		return err
	}
	c.Set(i, t)
	return nil
}

// coerce widens the common numeric cases the way CSV and Parquet callers
// hand values in; everything else must match the column type exactly.
func coerce[T any](c *Col[T], v any) (T, error) {
	var zero T
	if t, ok := v.(T); ok {
		return t, nil
	}
	switch any(zero).(type) {
	case int64:
		switch n := v.(type) {
		case int:
			return any(int64(n)).(T), nil
		case float64:
			return any(int64(n)).(T), nil
		}
	case float64:
		switch n := v.(type) {
		case int:
			return any(float64(n)).(T), nil
		case int64:
			return any(float64(n)).(T), nil
		case float32:
			return any(float64(n)).(T), nil
		}
	}
	return zero, fmt.Errorf("column %s expects %s, got %T", c.name, c.kind, v)
}

// Frame is a columnar container for tabular data.
type Frame struct {
	schema Schema
	cols   []Column
	index  map[string]int
	nrows  int
}

func New(s Schema) *Frame {
	f := &Frame{schema: s, cols: make([]Column, len(s.Columns)), index: make(map[string]int)}
	for i, cs := range s.Columns {
		switch cs.Type {
		case KindBool:
			f.cols[i] = &Col[bool]{name: cs.Name, kind: KindBool}
		case KindInt:
			f.cols[i] = &Col[int64]{name: cs.Name, kind: KindInt}
		case KindFloat:
			f.cols[i] = &Col[float64]{name: cs.Name, kind: KindFloat}
		case KindString:
			f.cols[i] = &Col[string]{name: cs.Name, kind: KindString}
		case KindTime:
			f.cols[i] = &Col[time.Time]{name: cs.Name, kind: KindTime}
		default:
			panic("table: invalid column kind")
		}
		f.index[cs.Name] = i
	}
	return f
}

func (f *Frame) Schema() Schema { return f.schema }
func (f *Frame) Rows() int      { return f.nrows }
func (f *Frame) Cols() int      { return len(f.cols) }

func (f *Frame) ColumnByName(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// ColumnAs returns the named column with its concrete element type.
func ColumnAs[T any](f *Frame, name string) (*Col[T], bool) {
	c, ok := f.ColumnByName(name)
	if !ok {
		return nil, false
	}
	t, ok := c.(*Col[T])
	return t, ok
}

// AppendNullRow appends a row with all-null values.
func (f *Frame) AppendNullRow() {
	for _, c := range f.cols {
		c.appendNull()
	}
	f.nrows++
}

// Cell returns the value at (row, name) and whether it is non-null.
func (f *Frame) Cell(row int, name string) (any, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i].cell(row)
}

// SetCell sets a single cell by column name; the row must already exist.
// A nil value marks the cell null.
func (f *Frame) SetCell(row int, name string, v any) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("unknown column: %s", name)
	}
	return f.cols[i].setAny(row, v)
}
