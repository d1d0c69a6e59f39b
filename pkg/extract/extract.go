// Package extract runs the raw-layer load: each manifest dataset is read
// from CSV, converted to Parquet, and written to the target as
// <target>/<name>/data.parquet, replacing whatever was there before.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/retailio/elt/pkg/io/csvio"
	"github.com/retailio/elt/pkg/io/parquetio"
	s3store "github.com/retailio/elt/pkg/storage/s3"
)

// Dataset names one CSV input. Name becomes the dataset directory under the
// target prefix.
type Dataset struct {
	Name string
	Path string
}

// ObjectStore is the slice of the S3 layer the job uses.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker) error
	DeletePrefix(ctx context.Context, bucket, prefix string) (int, error)
}

type Options struct {
	Target    string // "s3://bucket/prefix" or a local directory
	HasHeader bool
	Charset   string // e.g. "latin1" for the legacy retail feeds
	ChunkSize int    // rows per chunk; 0 uses the csvio default
	Logger    *slog.Logger
}

// Job extracts a fixed manifest of datasets to one target.
type Job struct {
	datasets []Dataset
	opt      Options
	store    ObjectStore

	// parsed target
	s3Bucket string
	s3Prefix string
	localDir string

	log *slog.Logger
}

// NewJob validates the target and returns a runnable job. store may be nil
// for local-directory targets.
func NewJob(datasets []Dataset, store ObjectStore, opt Options) (*Job, error) {
	if opt.Target == "" {
		return nil, errors.New("extract: target is required")
	}
	j := &Job{datasets: datasets, opt: opt, store: store, log: opt.Logger}
	if j.log == nil {
		j.log = slog.Default()
	}
	if strings.HasPrefix(opt.Target, "s3://") {
		if store == nil {
			return nil, errors.New("extract: s3 target requires an object store")
		}
		bucket, prefix, err := s3store.ParseURL(opt.Target)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		j.s3Bucket = bucket
		j.s3Prefix = prefix
	} else {
		j.localDir = opt.Target
	}
	return j, nil
}

// Run extracts every dataset in manifest order. Missing input files are
// logged and skipped, matching the source feeds being delivered
// irregularly; any other failure marks the dataset failed and the run
// returns an error after all datasets were attempted.
func (j *Job) Run(ctx context.Context) error {
	failed := 0
	for _, ds := range j.datasets {
		if _, err := os.Stat(ds.Path); errors.Is(err, fs.ErrNotExist) {
			j.log.Warn("input file missing, skipping dataset", "dataset", ds.Name, "path", ds.Path)
			continue
		}
		if err := j.runDataset(ctx, ds); err != nil {
			j.log.Error("dataset extract failed", "dataset", ds.Name, "path", ds.Path, "error", err)
			failed++
			continue
		}
		j.log.Info("dataset extracted", "dataset", ds.Name, "target", j.opt.Target)
	}
	if failed > 0 {
		return fmt.Errorf("extract: %d of %d datasets failed", failed, len(j.datasets))
	}
	return nil
}

func (j *Job) runDataset(ctx context.Context, ds Dataset) error {
	sr, err := csvio.NewStreamReader(ds.Path, csvio.ReaderOptions{
		HasHeader: j.opt.HasHeader,
		Charset:   j.opt.Charset,
	}, j.opt.ChunkSize)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = sr.Close() }()

	if j.localDir != "" {
		return j.writeLocal(sr, ds)
	}
	return j.writeS3(ctx, sr, ds)
}

func (j *Job) writeLocal(sr *csvio.StreamReader, ds Dataset) error {
	dir := filepath.Join(j.localDir, ds.Name)
	// overwrite: drop the previous dataset directory wholesale
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	sw, err := parquetio.NewFileStreamWriter(filepath.Join(dir, "data.parquet"), sr.Schema())
	if err != nil {
		return err
	}
	if err := copyChunks(sw, sr); err != nil {
		_ = sw.Close()
		return err
	}
	return sw.Close()
}

func (j *Job) writeS3(ctx context.Context, sr *csvio.StreamReader, ds Dataset) error {
	var buf bytes.Buffer
	sw, err := parquetio.NewBufferStreamWriter(&buf, sr.Schema())
	if err != nil {
		return err
	}
	if err := copyChunks(sw, sr); err != nil {
		_ = sw.Close()
		return err
	}
	if err := sw.Close(); err != nil {
		return err
	}

	dsPrefix := path.Join(j.s3Prefix, ds.Name)
	n, err := j.store.DeletePrefix(ctx, j.s3Bucket, dsPrefix+"/")
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info("overwrote existing dataset objects", "dataset", ds.Name, "deleted", n)
	}
	return j.store.Put(ctx, j.s3Bucket, path.Join(dsPrefix, "data.parquet"), bytes.NewReader(buf.Bytes()))
}

func copyChunks(sw *parquetio.StreamWriter, sr *csvio.StreamReader) error {
	for {
		f, err := sr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		if err := sw.WriteFrame(f); err != nil {
			return err
		}
	}
}
