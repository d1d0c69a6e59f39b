package table

import (
	"testing"
)

func testSchema() Schema {
	return Schema{Columns: []ColumnSchema{
		{Name: "qty", Type: KindInt, Nullable: true},
		{Name: "price", Type: KindFloat, Nullable: true},
		{Name: "sku", Type: KindString, Nullable: true},
		{Name: "active", Type: KindBool, Nullable: true},
	}}
}

func TestAppendAndSetCell(t *testing.T) {
	f := New(testSchema())
	f.AppendNullRow()
	if f.Rows() != 1 || f.Cols() != 4 {
		t.Fatalf("got %dx%d, want 1x4", f.Rows(), f.Cols())
	}
	if err := f.SetCell(0, "qty", int64(7)); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCell(0, "price", 9.5); err != nil {
		t.Fatal(err)
	}
	v, ok := f.Cell(0, "qty")
	if !ok || v.(int64) != 7 {
		t.Fatalf("qty = %v, %v", v, ok)
	}
	if _, ok := f.Cell(0, "sku"); ok {
		t.Fatal("unset cell should be null")
	}
}

func TestSetCellCoercion(t *testing.T) {
	f := New(testSchema())
	f.AppendNullRow()
	// int and float64 both land in an int column
	if err := f.SetCell(0, "qty", 3); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCell(0, "price", int64(4)); err != nil {
		t.Fatal(err)
	}
	v, _ := f.Cell(0, "price")
	if v.(float64) != 4.0 {
		t.Fatalf("price = %v", v)
	}
	if err := f.SetCell(0, "qty", "not a number"); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestSetCellNilMarksNull(t *testing.T) {
	f := New(testSchema())
	f.AppendNullRow()
	if err := f.SetCell(0, "sku", "A-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCell(0, "sku", nil); err != nil {
		t.Fatal(err)
	}
	col, ok := ColumnAs[string](f, "sku")
	if !ok {
		t.Fatal("missing sku column")
	}
	if !col.IsNull(0) {
		t.Fatal("cell should be null after nil set")
	}
}

func TestUnknownColumn(t *testing.T) {
	f := New(testSchema())
	f.AppendNullRow()
	if err := f.SetCell(0, "nope", 1); err == nil {
		t.Fatal("expected unknown column error")
	}
}
