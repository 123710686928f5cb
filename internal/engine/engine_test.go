package engine

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/blobstore"
	"github.com/nucleus/dq-core/internal/frame"
	"github.com/nucleus/dq-core/internal/yamlconfig"
)

const tripsCSV = "vendor_id,passenger_count,fare\n1,2,10.5\n2,,7.25\n1,4,NA\n"

func newEngine(t *testing.T, class string) *Engine {
	t.Helper()
	e, err := New(&yamlconfig.ExecutionEngineConfig{ClassName: class})
	require.NoError(t, err)
	return e
}

func putMem(t *testing.T, bucket, key string, body []byte) {
	t.Helper()
	store, err := blobstore.Open(context.Background(), blobstore.Config{Provider: blobstore.ProviderMem, Bucket: bucket})
	require.NoError(t, err)
	require.NoError(t, store.Upload(context.Background(), key, bytes.NewReader(body)))
	t.Cleanup(func() { blobstore.ResetMem(bucket) })
}

// =============================================================================
// Readers
// =============================================================================

func TestReadCSV_Options(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		opts        map[string]any
		wantColumns []string
		wantRows    int
		check       func(t *testing.T, f *frame.Frame)
	}{
		{
			name:        "header",
			input:       tripsCSV,
			opts:        map[string]any{"header": true},
			wantColumns: []string{"vendor_id", "passenger_count", "fare"},
			wantRows:    3,
			check: func(t *testing.T, f *frame.Frame) {
				assert.Equal(t, "10.5", f.Rows[0][2])
				assert.Nil(t, f.Rows[1][1], "empty field is null")
			},
		},
		{
			name:        "no header names columns positionally",
			input:       tripsCSV,
			opts:        map[string]any{},
			wantColumns: []string{"_c0", "_c1", "_c2"},
			wantRows:    4,
		},
		{
			name:        "header given as string",
			input:       tripsCSV,
			opts:        map[string]any{"header": "true"},
			wantColumns: []string{"vendor_id", "passenger_count", "fare"},
			wantRows:    3,
		},
		{
			name:        "separator and null value",
			input:       "a;b\nx;NA\n",
			opts:        map[string]any{"header": true, "sep": ";", "nullValue": "NA"},
			wantColumns: []string{"a", "b"},
			wantRows:    1,
			check: func(t *testing.T, f *frame.Frame) {
				assert.Nil(t, f.Rows[0][1])
			},
		},
		{
			name:        "infer schema",
			input:       "i,f,b,s\n1,1.5,true,x\n2,2,false,3\n",
			opts:        map[string]any{"header": true, "inferSchema": true},
			wantColumns: []string{"i", "f", "b", "s"},
			wantRows:    2,
			check: func(t *testing.T, f *frame.Frame) {
				assert.Equal(t, int64(1), f.Rows[0][0])
				assert.Equal(t, 2.0, f.Rows[1][1])
				assert.Equal(t, false, f.Rows[1][2])
				assert.Equal(t, "3", f.Rows[1][3])
			},
		},
		{
			name:        "comment lines",
			input:       "# generated\na\n1\n",
			opts:        map[string]any{"header": true, "comment": "#"},
			wantColumns: []string{"a"},
			wantRows:    1,
		},
		{
			name:        "ragged rows widen columns",
			input:       "a\n1,2\n",
			opts:        map[string]any{"header": true},
			wantColumns: []string{"a", "_c1"},
			wantRows:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ReadCSV(strings.NewReader(tt.input), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantColumns, f.Columns)
			assert.Equal(t, tt.wantRows, f.Count())
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestReadCSV_RejectsUnsupportedOptions(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a\n"), map[string]any{"quote": "'"})
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a\n"), map[string]any{"sep": "::"})
	assert.Error(t, err)
}

func TestReadJSONLines(t *testing.T) {
	f, err := ReadJSONLines(strings.NewReader(`{"b":1,"a":"x"}
{"a":"y","c":2.5}
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, f.Columns)
	assert.Equal(t, 2, f.Count())
	assert.Equal(t, int64(1), f.Rows[0][1])
	assert.Nil(t, f.Rows[1][1])
	assert.Equal(t, 2.5, f.Rows[1][2])

	_, err = ReadJSONLines(strings.NewReader("{not json}\n"))
	assert.Error(t, err)
}

func writeParquet(t *testing.T, rows []map[string]any) []byte {
	t.Helper()
	schema := `{"Tag":"name=parquet_go_root, repetitiontype=REQUIRED","Fields":[
		{"Tag":"name=trip_id, type=INT64, repetitiontype=OPTIONAL"},
		{"Tag":"name=fare, type=DOUBLE, repetitiontype=OPTIONAL"},
		{"Tag":"name=vendor, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"}]}`

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(schema, pfw, 1)
	require.NoError(t, err)
	for _, row := range rows {
		line, err := json.Marshal(row)
		require.NoError(t, err)
		require.NoError(t, pw.Write(string(line)))
	}
	require.NoError(t, pw.WriteStop())
	require.NoError(t, pfw.Close())
	return buf.Bytes()
}

func TestReadParquet(t *testing.T) {
	raw := writeParquet(t, []map[string]any{
		{"trip_id": 1, "fare": 10.5, "vendor": "a"},
		{"trip_id": 2, "fare": 3.0, "vendor": "b"},
	})

	f, err := ReadParquet(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"trip_id", "fare", "vendor"}, f.Columns)
	require.Equal(t, 2, f.Count())
	assert.Equal(t, int64(1), f.Rows[0][0])
	assert.Equal(t, 10.5, f.Rows[0][1])
	assert.Equal(t, "b", f.Rows[1][2])

	_, err = ReadParquet([]byte("not parquet"))
	assert.Error(t, err)
}

// =============================================================================
// Engine
// =============================================================================

func TestNew_ReaderDefaultsByClass(t *testing.T) {
	spark := newEngine(t, yamlconfig.SparkEngineClass)
	assert.Equal(t, false, spark.readerDefaults["header"])

	pandas := newEngine(t, yamlconfig.PandasEngineClass)
	assert.Equal(t, true, pandas.readerDefaults["header"])

	_, err := New(&yamlconfig.ExecutionEngineConfig{ClassName: "DaskExecutionEngine"})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}

func TestLoadBatchData_FromLocation(t *testing.T) {
	putMem(t, "engine-trips", "data/trips.csv", []byte(tripsCSV))
	e := newEngine(t, yamlconfig.SparkEngineClass)

	spec := &batch.Spec{
		Location:      &batch.Location{Provider: blobstore.ProviderMem, Bucket: "engine-trips", Key: "data/trips.csv"},
		ReaderMethod:  ReaderCSV,
		ReaderOptions: map[string]any{"header": true},
	}
	f, err := e.LoadBatchData(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count())
	assert.Equal(t, "vendor_id", f.Columns[0])

	// Spark default: the header row is data.
	spec.ReaderOptions = nil
	f, err = e.LoadBatchData(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Count())
}

func TestLoadBatchData_InfersReaderAndGunzips(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(tripsCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	putMem(t, "engine-gz", "trips.csv.gz", gz.Bytes())

	e := newEngine(t, yamlconfig.PandasEngineClass)
	f, err := e.LoadBatchData(context.Background(), &batch.Spec{
		Location: &batch.Location{Provider: blobstore.ProviderMem, Bucket: "engine-gz", Key: "trips.csv.gz"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count())
}

func TestLoadBatchData_Path(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "trips.csv")
	require.NoError(t, os.WriteFile(p, []byte(tripsCSV), 0o644))

	e := newEngine(t, yamlconfig.PandasEngineClass)
	f, err := e.LoadBatchData(context.Background(), &batch.Spec{Path: p})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count())

	f, err = e.LoadBatchData(context.Background(), &batch.Spec{Path: "file://" + p})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count())

	putMem(t, "engine-path", "x/trips.csv", []byte(tripsCSV))
	f, err = e.LoadBatchData(context.Background(), &batch.Spec{Path: "mem://engine-path/x/trips.csv"})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count())

	_, err = e.LoadBatchData(context.Background(), &batch.Spec{Path: "ftp://host/x.csv"})
	assert.Error(t, err)
}

func TestLoadBatchData_Errors(t *testing.T) {
	putMem(t, "engine-errors", "blob.bin", []byte("x"))
	e := newEngine(t, yamlconfig.PandasEngineClass)
	ctx := context.Background()

	_, err := e.LoadBatchData(ctx, nil)
	assert.Error(t, err)

	_, err = e.LoadBatchData(ctx, &batch.Spec{})
	assert.Error(t, err)

	loc := &batch.Location{Provider: blobstore.ProviderMem, Bucket: "engine-errors", Key: "blob.bin"}
	_, err = e.LoadBatchData(ctx, &batch.Spec{Location: loc})
	assert.ErrorContains(t, err, "cannot infer reader_method")

	_, err = e.LoadBatchData(ctx, &batch.Spec{Location: loc, ReaderMethod: "avro"})
	assert.ErrorContains(t, err, "unsupported reader_method")

	missing := &batch.Location{Provider: blobstore.ProviderMem, Bucket: "engine-errors", Key: "missing.csv"}
	_, err = e.LoadBatchData(ctx, &batch.Spec{Location: missing})
	require.Error(t, err)
	assert.True(t, blobstore.IsNotFound(err))
}

func TestLoadBatchData_SplitThenSample(t *testing.T) {
	data := frame.New("vendor_id", "n")
	for i := 0; i < 10; i++ {
		data.Append(i%2, i)
	}
	e := newEngine(t, yamlconfig.PandasEngineClass)

	f, err := e.LoadBatchData(context.Background(), &batch.Spec{
		BatchData: data,
		Splitting: &batch.Method{Name: SplitOnColumnValue, Kwargs: map[string]any{
			"column_name":       "vendor_id",
			"batch_identifiers": map[string]any{"vendor_id": 1},
		}},
		Sampling: &batch.Method{Name: SampleLimit, Kwargs: map[string]any{"n": 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Count())
	for _, row := range f.Rows {
		assert.Equal(t, 1, row[0])
	}
}

func TestStoreConfig_EngineOptionsWin(t *testing.T) {
	e, err := New(&yamlconfig.ExecutionEngineConfig{
		ClassName:    yamlconfig.SparkEngineClass,
		AzureOptions: &blobstore.AzureOptions{Credential: "engine-key"},
	}, WithRateLimit(5, 2))
	require.NoError(t, err)

	cfg := e.storeConfig(&batch.Location{
		Provider: blobstore.ProviderAzure,
		Bucket:   "container",
		Options: blobstore.Config{Azure: &blobstore.AzureOptions{
			AccountURL: "acct.blob.core.windows.net",
			Credential: "connector-key",
		}},
	})
	assert.Equal(t, "azure", cfg.Provider)
	assert.Equal(t, "container", cfg.Bucket)
	assert.Equal(t, "acct.blob.core.windows.net", cfg.Azure.AccountURL)
	assert.Equal(t, "engine-key", cfg.Azure.Credential)
	require.NotNil(t, cfg.Limiter)
	assert.Same(t, e.limiter, cfg.Limiter)
	assert.Zero(t, cfg.RateLimit)

	again := e.storeConfig(&batch.Location{Provider: blobstore.ProviderMem, Bucket: "other"})
	assert.Same(t, cfg.Limiter, again.Limiter, "every location shares the engine limiter")
}

func TestInferReaderMethod(t *testing.T) {
	tests := map[string]string{
		"a/b.csv":      ReaderCSV,
		"a/b.CSV.gz":   ReaderCSV,
		"b.parquet":    ReaderParquet,
		"events.jsonl": ReaderJSON,
		"notes.md":     "",
		"no-extension": "",
	}
	for key, want := range tests {
		assert.Equal(t, want, InferReaderMethod(key), key)
	}
}

// =============================================================================
// Sampling and splitting
// =============================================================================

func TestSample(t *testing.T) {
	data := frame.New("id", "color")
	for i := 0; i < 100; i++ {
		data.Append(int64(i), []string{"red", "green", "blue"}[i%3])
	}

	tests := []struct {
		name    string
		method  *batch.Method
		want    int
		wantErr bool
	}{
		{name: "limit", method: &batch.Method{Name: SampleLimit, Kwargs: map[string]any{"n": 7}}, want: 7},
		{name: "mod", method: &batch.Method{Name: SampleMod, Kwargs: map[string]any{"column_name": "id", "mod": 10, "value": 3}}, want: 10},
		{name: "list", method: &batch.Method{Name: SampleList, Kwargs: map[string]any{"column_name": "color", "value_list": []any{"red", "blue"}}}, want: 67},
		{name: "random all", method: &batch.Method{Name: SampleRandom, Kwargs: map[string]any{"p": 1.0}}, want: 100},
		{name: "random none", method: &batch.Method{Name: SampleRandom, Kwargs: map[string]any{"p": 0}}, want: 0},
		{name: "limit missing n", method: &batch.Method{Name: SampleLimit}, wantErr: true},
		{name: "mod unknown column", method: &batch.Method{Name: SampleMod, Kwargs: map[string]any{"column_name": "x", "mod": 2, "value": 0}}, wantErr: true},
		{name: "random bad p", method: &batch.Method{Name: SampleRandom, Kwargs: map[string]any{"p": 2}}, wantErr: true},
		{name: "unknown", method: &batch.Method{Name: "_sample_using_hash"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sample(data, tt.method)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Count())
		})
	}
}

func TestSample_ModFloorsNegatives(t *testing.T) {
	data := frame.New("delta")
	for _, v := range []any{-13, -7, -3, 3, 7, 13, 17} {
		data.Append(v)
	}
	got, err := Sample(data, &batch.Method{Name: SampleMod, Kwargs: map[string]any{"column_name": "delta", "mod": 10, "value": 3}})
	require.NoError(t, err)

	var kept []any
	for _, row := range got.Rows {
		kept = append(kept, row[0])
	}
	assert.Equal(t, []any{-7, 3, 13}, kept)
}

func TestSample_RandomIsSeeded(t *testing.T) {
	data := frame.New("id")
	for i := 0; i < 200; i++ {
		data.Append(i)
	}
	m := &batch.Method{Name: SampleRandom, Kwargs: map[string]any{"p": 0.5, "seed": 42}}
	a, err := Sample(data, m)
	require.NoError(t, err)
	b, err := Sample(data, m)
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Greater(t, a.Count(), 0)
	assert.Less(t, a.Count(), 200)
}

func TestSplit(t *testing.T) {
	data := frame.New("month")
	data.Append("01")
	data.Append("02")

	whole, err := Split(data, &batch.Method{Name: SplitWholeTable})
	require.NoError(t, err)
	assert.Equal(t, 2, whole.Count())

	_, err = Split(data, &batch.Method{Name: SplitOnColumnValue, Kwargs: map[string]any{"column_name": "month"}})
	assert.Error(t, err)

	_, err = Split(data, &batch.Method{Name: "_split_on_year"})
	assert.Error(t, err)
}
