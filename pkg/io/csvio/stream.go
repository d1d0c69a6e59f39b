package csvio

import (
	"io"

	"github.com/retailio/elt/pkg/table"
)

// StreamReader reads CSV into Frame chunks of up to ChunkSize rows, for
// extracts too large to hold in one Frame.
type StreamReader struct {
	r         *Reader
	schema    table.Schema
	chunkSize int
}

// NewStreamReader opens the file, infers the schema, and returns a
// StreamReader. Close releases the underlying file.
func NewStreamReader(path string, opt ReaderOptions, chunkSize int) (*StreamReader, error) {
	rr, err := Open(path, opt)
	if err != nil {
		return nil, err
	}
	schema, err := rr.InferSchema()
	if err != nil {
		_ = rr.Close()
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &StreamReader{r: rr, schema: schema, chunkSize: chunkSize}, nil
}

func (s *StreamReader) Schema() table.Schema { return s.schema }

func (s *StreamReader) Close() error { return s.r.Close() }

// Next returns the next chunk frame, or io.EOF when the input is exhausted.
func (s *StreamReader) Next() (*table.Frame, error) {
	f := table.New(s.schema)
	// drain rows buffered during inference first
	for len(s.r.buf) > 0 && f.Rows() < s.chunkSize {
		rec := s.r.buf[0]
		s.r.buf = s.r.buf[1:]
		if err := s.r.appendRecord(f, s.schema, rec); err != nil {
			return nil, err
		}
	}
	for f.Rows() < s.chunkSize {
		rec, err := s.r.r.Read()
		if err == io.EOF {
			if f.Rows() == 0 {
				return nil, io.EOF
			}
			return f, nil
		}
		if err != nil {
			return nil, err
		}
		if err := s.r.appendRecord(f, s.schema, rec); err != nil {
			return nil, err
		}
	}
	return f, nil
}
