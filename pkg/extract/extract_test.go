package extract

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsCSV = "product_id,name,price\n1,Espresso,1.20\n2,Galão,1.50\n"
const salesCSV = "sale_id,product_id,qty\n10,1,2\n11,2,1\n12,1,5\n"

func writeManifest(t *testing.T) (dir string, datasets []Dataset) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.csv"), []byte(productsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(salesCSV), 0o644))
	return dir, []Dataset{
		{Name: "products", Path: filepath.Join(dir, "products.csv")},
		{Name: "sales", Path: filepath.Join(dir, "sales.csv")},
	}
}

func TestRunLocalTarget(t *testing.T) {
	_, datasets := writeManifest(t)
	target := t.TempDir()

	j, err := NewJob(datasets, nil, Options{Target: target, HasHeader: true})
	require.NoError(t, err)
	require.NoError(t, j.Run(context.Background()))

	for _, name := range []string{"products", "sales"} {
		b, err := os.ReadFile(filepath.Join(target, name, "data.parquet"))
		require.NoError(t, err, name)
		assert.True(t, bytes.HasPrefix(b, []byte("PAR1")), "%s missing magic", name)
		assert.True(t, bytes.HasSuffix(b, []byte("PAR1")), "%s missing magic", name)
	}
}

func TestRunLocalOverwrite(t *testing.T) {
	_, datasets := writeManifest(t)
	target := t.TempDir()

	// stale part file from a previous run
	stale := filepath.Join(target, "products", "old-part.parquet")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	j, err := NewJob(datasets, nil, Options{Target: target, HasHeader: true})
	require.NoError(t, err)
	require.NoError(t, j.Run(context.Background()))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "overwrite should remove stale objects")
}

func TestRunSkipsMissingInput(t *testing.T) {
	_, datasets := writeManifest(t)
	datasets = append(datasets, Dataset{Name: "returns", Path: "data/raw/returns.csv"})
	target := t.TempDir()

	j, err := NewJob(datasets, nil, Options{Target: target, HasHeader: true})
	require.NoError(t, err)
	require.NoError(t, j.Run(context.Background()), "missing input is a skip, not a failure")

	_, err = os.Stat(filepath.Join(target, "returns"))
	assert.True(t, os.IsNotExist(err))
}

type fakeStore struct {
	objects map[string][]byte
	deletes []string
}

func (f *fakeStore) Put(_ context.Context, bucket, key string, body io.ReadSeeker) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = b
	return nil
}

func (f *fakeStore) DeletePrefix(_ context.Context, bucket, prefix string) (int, error) {
	f.deletes = append(f.deletes, prefix)
	n := 0
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			delete(f.objects, k)
			n++
		}
	}
	return n, nil
}

func TestRunS3Target(t *testing.T) {
	_, datasets := writeManifest(t)
	store := &fakeStore{objects: map[string][]byte{
		"raw/products/2019-part.parquet": []byte("stale"),
	}}

	j, err := NewJob(datasets, store, Options{Target: "s3://retailio-elt-s3/raw", HasHeader: true})
	require.NoError(t, err)
	require.NoError(t, j.Run(context.Background()))

	assert.Contains(t, store.deletes, "raw/products/")
	assert.Contains(t, store.deletes, "raw/sales/")
	assert.NotContains(t, store.objects, "raw/products/2019-part.parquet")

	for _, key := range []string{"raw/products/data.parquet", "raw/sales/data.parquet"} {
		b, ok := store.objects[key]
		require.True(t, ok, key)
		assert.True(t, bytes.HasPrefix(b, []byte("PAR1")), key)
	}
}

func TestNewJobValidation(t *testing.T) {
	_, err := NewJob(nil, nil, Options{})
	assert.Error(t, err)

	_, err = NewJob(nil, nil, Options{Target: "s3://bucket/raw"})
	assert.ErrorContains(t, err, "object store")

	_, err = NewJob(nil, &fakeStore{}, Options{Target: "s3:///raw"})
	assert.ErrorContains(t, err, "bucket")
}

func TestRunLatin1Dataset(t *testing.T) {
	dir := t.TempDir()
	// "Pastéis" in latin1
	row := append([]byte("id,name\n1,Past"), 0xE9, 'i', 's', '\n')
	csvPath := filepath.Join(dir, "stores.csv")
	require.NoError(t, os.WriteFile(csvPath, row, 0o644))
	target := t.TempDir()

	j, err := NewJob([]Dataset{{Name: "stores", Path: csvPath}}, nil,
		Options{Target: target, HasHeader: true, Charset: "latin1"})
	require.NoError(t, err)
	require.NoError(t, j.Run(context.Background()))

	b, err := os.ReadFile(filepath.Join(target, "stores", "data.parquet"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Pastéis", "decoded latin1 value should appear in the column data")
}
