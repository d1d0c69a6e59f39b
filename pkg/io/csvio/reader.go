// Package csvio reads raw CSV extracts into table frames, inferring a schema
// from sampled rows. Input may be gzip-compressed and may use a legacy
// single-byte charset (the retail feeds are latin1).
package csvio

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/retailio/elt/pkg/table"
)

type ReaderOptions struct {
	HasHeader  bool
	Delimiter  rune   // 0 = sniff, default ','
	Charset    string // "", "utf-8" or "latin1"
	SampleRows int    // for inference; default 100
	Strict     bool   // if true, error on short/long records
}

type Reader struct {
	r   *csv.Reader
	rc  io.Closer
	opt ReaderOptions
	buf [][]string
	// repair/warning counters
	shortRecords int
	longRecords  int
}

// Open opens a CSV file and returns a Reader. Gzip input is detected by
// extension or magic bytes.
func Open(path string, opt ReaderOptions) (*Reader, error) {
	rc, err := openMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(rc, rc, opt)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return r, nil
}

// NewReaderFrom constructs a Reader over an arbitrary io.Reader (stdin, pipe).
func NewReaderFrom(src io.Reader, opt ReaderOptions) (*Reader, error) {
	return newReader(src, nil, opt)
}

func newReader(src io.Reader, closer io.Closer, opt ReaderOptions) (*Reader, error) {
	dec, err := charsetDecoder(opt.Charset)
	if err != nil {
		return nil, err
	}
	if dec != nil {
		src = dec.Reader(src)
	}
	br := bufio.NewReader(src)
	rr := csv.NewReader(br)
	rr.ReuseRecord = true
	if opt.Delimiter != 0 {
		rr.Comma = opt.Delimiter
	} else if d, lazy := sniffDelimiterAndQuotes(br); d != 0 {
		rr.Comma = d
		rr.LazyQuotes = lazy
	}
	rr.FieldsPerRecord = -1
	return &Reader{r: rr, rc: closer, opt: opt}, nil
}

func (r *Reader) Close() error {
	if r.rc == nil {
		return nil
	}
	return r.rc.Close()
}

func charsetDecoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	}
	return nil, fmt.Errorf("csvio: unsupported charset %q", name)
}

// InferSchema reads the header (if present) and samples rows to determine
// column kinds. Sampled rows are retained for the subsequent ReadAll.
func (r *Reader) InferSchema() (table.Schema, error) {
	rec, err := r.r.Read()
	if err != nil {
		return table.Schema{}, err
	}
	var names []string
	if r.opt.HasHeader {
		names = make([]string, len(rec))
		for i := range rec {
			names[i] = strings.ToValidUTF8(rec[i], "?")
		}
		// strip BOM on the first header cell if present
		if len(names) > 0 {
			names[0] = strings.TrimPrefix(names[0], "\ufeff")
		}
		rec, err = r.r.Read()
		if err == io.EOF {
			return headerOnlySchema(names), nil
		}
		if err != nil {
			return table.Schema{}, err
		}
	} else {
		names = make([]string, len(rec))
		for i := range names {
			names[i] = "col_" + strconv.Itoa(i)
		}
	}

	sample := [][]string{cloneRecord(rec)}
	max := r.opt.SampleRows
	if max <= 0 {
		max = 100
	}
	for i := 1; i < max; i++ {
		rr, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table.Schema{}, err
		}
		sample = append(sample, cloneRecord(rr))
	}

	kinds := inferKinds(sample)
	schema := table.Schema{Columns: make([]table.ColumnSchema, len(names))}
	for i := range names {
		schema.Columns[i] = table.ColumnSchema{Name: names[i], Type: kinds[i], Nullable: true}
	}
	r.buf = append(r.buf, sample...)
	return schema, nil
}

func headerOnlySchema(names []string) table.Schema {
	s := table.Schema{Columns: make([]table.ColumnSchema, len(names))}
	for i, n := range names {
		s.Columns[i] = table.ColumnSchema{Name: n, Type: table.KindString, Nullable: true}
	}
	return s
}

// cloneRecord copies a record out of the csv.Reader's reused backing array.
func cloneRecord(rec []string) []string {
	out := make([]string, len(rec))
	copy(out, rec)
	return out
}

// ReadAll loads the rest of the CSV into a Frame.
func (r *Reader) ReadAll(schema table.Schema) (*table.Frame, error) {
	f := table.New(schema)
	for len(r.buf) > 0 {
		rec := r.buf[0]
		r.buf = r.buf[1:]
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := r.appendRecord(f, schema, rec); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// appendRecord appends one null row then fills the non-empty cells, parsing
// by the inferred kind. Unparseable cells stay null.
func (r *Reader) appendRecord(f *table.Frame, schema table.Schema, rec []string) error {
	f.AppendNullRow()
	row := f.Rows() - 1
	if len(rec) > len(schema.Columns) {
		r.longRecords++
		if r.opt.Strict {
			return fmt.Errorf("csvio: long record at row %d: need %d fields, got %d", row, len(schema.Columns), len(rec))
		}
	}
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			r.shortRecords++
			if r.opt.Strict {
				return fmt.Errorf("csvio: short record at row %d: need %d fields, got %d", row, len(schema.Columns), len(rec))
			}
			continue
		}
		val := strings.ToValidUTF8(strings.TrimSpace(rec[i]), "?")
		if val == "" {
			continue
		}
		switch cs.Type {
		case table.KindFloat:
			if x, err := strconv.ParseFloat(val, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case table.KindInt:
			if x, err := strconv.ParseInt(val, 10, 64); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		case table.KindBool:
			if x, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
				_ = f.SetCell(row, cs.Name, x)
			}
		default:
			_ = f.SetCell(row, cs.Name, val)
		}
	}
	return nil
}

var numRe = regexp.MustCompile(`^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`)

func inferKinds(rows [][]string) []table.Kind {
	if len(rows) == 0 {
		return nil
	}
	ncol := len(rows[0])
	kinds := make([]table.Kind, ncol)
	for c := 0; c < ncol; c++ {
		num, integer, str := 0, 0, 0
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[c])
			if v == "" {
				continue
			}
			if numRe.MatchString(v) {
				num++
				if !strings.ContainsAny(v, ".eE") {
					integer++
				}
			} else {
				lv := strings.ToLower(v)
				if lv == "true" || lv == "false" {
					continue
				}
				str++
			}
		}
		// prefer float over int to be permissive
		if num > str {
			if integer == num {
				kinds[c] = table.KindInt
			} else {
				kinds[c] = table.KindFloat
			}
		} else {
			kinds[c] = table.KindString
		}
	}
	return kinds
}

// sniffDelimiterAndQuotes peeks at buffered input and picks the most frequent
// candidate delimiter, enabling LazyQuotes when quoting looks irregular.
func sniffDelimiterAndQuotes(br *bufio.Reader) (rune, bool) {
	sample, _ := br.Peek(4096)
	if len(sample) == 0 {
		return ',', false
	}
	candidates := []byte{',', '\t', ';', '|'}
	best := byte(',')
	bestCount := -1
	for _, c := range candidates {
		cnt := 0
		for _, b := range sample {
			if b == c {
				cnt++
			}
		}
		if cnt > bestCount {
			bestCount = cnt
			best = c
		}
	}
	quoteCount := 0
	for _, b := range sample {
		if b == '"' {
			quoteCount++
		}
	}
	lazy := quoteCount%2 != 0
	return rune(best), lazy
}

// Warnings returns a summary of any repairs/mismatches encountered.
func (r *Reader) Warnings() string {
	if r.shortRecords == 0 && r.longRecords == 0 {
		return ""
	}
	parts := []string{}
	if r.shortRecords > 0 {
		parts = append(parts, fmt.Sprintf("short_records=%d", r.shortRecords))
	}
	if r.longRecords > 0 {
		parts = append(parts, fmt.Sprintf("long_records=%d", r.longRecords))
	}
	return strings.Join(parts, ", ")
}

// openMaybeCompressed opens path and transparently unwraps gzip, detected by
// the .gz extension or the magic bytes.
func openMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".gz" {
		zr, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return readCloser{Reader: zr, closeFn: func() error { _ = zr.Close(); return f.Close() }}, nil
	}
	br := bufio.NewReader(f)
	if b, err := br.Peek(2); err == nil && len(b) == 2 && b[0] == 0x1f && b[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return readCloser{Reader: zr, closeFn: func() error { _ = zr.Close(); return f.Close() }}, nil
	}
	return readCloser{Reader: br, closeFn: f.Close}, nil
}

type readCloser struct {
	io.Reader
	closeFn func() error
}

func (r readCloser) Close() error { return r.closeFn() }
