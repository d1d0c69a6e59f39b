// Package parquetio serializes table frames to Parquet for the load side of
// the extract job.
package parquetio

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	local "github.com/xitongsys/parquet-go-source/local"
	wf "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/source"
	pw "github.com/xitongsys/parquet-go/writer"

	"github.com/retailio/elt/pkg/table"
)

const writeParallelism = 4

// schemaJSON builds the parquet-go JSONWriter schema for a table schema.
// Every column is OPTIONAL so null cells survive the trip.
func schemaJSON(s table.Schema) string {
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=schema, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL, type="
		switch cs.Type {
		case table.KindFloat:
			tag += "DOUBLE"
		case table.KindInt:
			tag += "INT64"
		case table.KindBool:
			tag += "BOOLEAN"
		default:
			tag += "BYTE_ARRAY, convertedtype=UTF8"
		}
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, _ := json.Marshal(sc)
	return string(b)
}

// StreamWriter appends frames of one schema to a single Parquet stream.
type StreamWriter struct {
	w   *pw.JSONWriter
	dst source.ParquetFile
}

// NewStreamWriter wraps an open Parquet destination. Close finalizes the
// footer and closes dst.
func NewStreamWriter(dst source.ParquetFile, s table.Schema) (*StreamWriter, error) {
	w, err := pw.NewJSONWriter(schemaJSON(s), dst, writeParallelism)
	if err != nil {
		return nil, fmt.Errorf("parquet writer init: %w", err)
	}
	return &StreamWriter{w: w, dst: dst}, nil
}

// NewFileStreamWriter creates path and returns a StreamWriter over it.
func NewFileStreamWriter(path string, s table.Schema) (*StreamWriter, error) {
	dst, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, err
	}
	sw, err := NewStreamWriter(dst, s)
	if err != nil {
		_ = dst.Close()
		return nil, err
	}
	return sw, nil
}

// NewBufferStreamWriter returns a StreamWriter that streams the encoded
// bytes to w, for callers that upload the dataset instead of keeping it
// on disk.
func NewBufferStreamWriter(w io.Writer, s table.Schema) (*StreamWriter, error) {
	return NewStreamWriter(wf.NewWriterFile(w), s)
}

// WriteFrame appends every row of f. The frame schema must match the one
// the writer was created with.
func (sw *StreamWriter) WriteFrame(f *table.Frame) error {
	for r := 0; r < f.Rows(); r++ {
		rec := make(map[string]any, f.Cols())
		for _, cs := range f.Schema().Columns {
			v, ok := f.Cell(r, cs.Name)
			if !ok {
				continue
			}
			if t, ok := v.(time.Time); ok {
				rec[cs.Name] = t.Format(time.RFC3339)
			} else {
				rec[cs.Name] = v
			}
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("parquet encode row %d: %w", r, err)
		}
		if err := sw.w.Write(string(line)); err != nil {
			return fmt.Errorf("parquet write row %d: %w", r, err)
		}
	}
	return nil
}

// Close writes the footer and closes the destination.
func (sw *StreamWriter) Close() error {
	if err := sw.w.WriteStop(); err != nil {
		_ = sw.dst.Close()
		return fmt.Errorf("parquet finalize: %w", err)
	}
	return sw.dst.Close()
}

// Write serializes a whole frame into dst.
func Write(dst source.ParquetFile, f *table.Frame) error {
	sw, err := NewStreamWriter(dst, f.Schema())
	if err != nil {
		return err
	}
	if err := sw.WriteFrame(f); err != nil {
		_ = sw.dst.Close()
		return err
	}
	return sw.Close()
}

// WriteFile writes the frame to a local Parquet file.
func WriteFile(path string, f *table.Frame) error {
	dst, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	return Write(dst, f)
}

// WriteTo writes the frame as Parquet bytes to w.
func WriteTo(w io.Writer, f *table.Frame) error {
	return Write(wf.NewWriterFile(w), f)
}
