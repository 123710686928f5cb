package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PROVIDERS
// =============================================================================

func TestBlobstore_ProvidersRegistered(t *testing.T) {
	providers := Providers()
	for _, want := range []string{ProviderAzure, ProviderS3, ProviderMinio, ProviderGCS, ProviderFile, ProviderMem} {
		assert.Contains(t, providers, want)
	}
}

func TestBlobstore_OpenValidation(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Config{Provider: "ftp", Bucket: "x"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidConfig, CodeOf(err))

	_, err = Open(ctx, Config{Provider: ProviderMem})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")

	_, err = Open(ctx, Config{Provider: ProviderAzure, Bucket: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account_url or conn_str is required")
}

func TestBlobstore_MemRoundTrip(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { ResetMem("roundtrip") })

	store, err := Open(ctx, Config{Provider: ProviderMem, Bucket: "roundtrip"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upload(ctx, "data/b.csv", strings.NewReader("b")))
	require.NoError(t, store.Upload(ctx, "data/a.csv", strings.NewReader("a")))
	require.NoError(t, store.Upload(ctx, "other/c.csv", strings.NewReader("c")))

	objects, err := store.List(ctx, "data/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "data/a.csv", objects[0].Key)
	assert.Equal(t, "data/b.csv", objects[1].Key)

	data, err := ReadAll(ctx, store, "data/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	info, err := store.Head(ctx, "missing.csv")
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = store.Download(ctx, "missing.csv")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	require.NoError(t, store.Delete(ctx, "data/a.csv"))
	require.NoError(t, store.Delete(ctx, "data/a.csv"), "deleting a missing key is not an error")

	// A second open of the same name shares contents.
	again, err := Open(ctx, Config{Provider: ProviderMem, Bucket: "roundtrip"})
	require.NoError(t, err)
	objects, err = again.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestBlobstore_FileProvider(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(ctx, Config{Provider: ProviderFile, Bucket: dir})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upload(ctx, "nested/file.txt", strings.NewReader("hello")))
	objects, err := store.List(ctx, "nested/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "nested/file.txt", objects[0].Key)
	assert.Equal(t, int64(5), objects[0].Size)
}

func TestBlobstore_Override(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { ResetMem("public-container") })

	restore := Override(ProviderAzure, MemOpener())
	store, err := Open(ctx, Config{Provider: ProviderAzure, Bucket: "public-container"})
	require.NoError(t, err)
	require.NoError(t, store.Upload(ctx, "k", strings.NewReader("v")))
	restore()

	mem, err := Open(ctx, Config{Provider: ProviderMem, Bucket: "public-container"})
	require.NoError(t, err)
	info, err := mem.Head(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, info)

	_, err = Open(ctx, Config{Provider: ProviderAzure, Bucket: "public-container"})
	assert.Error(t, err, "restored azure opener requires account options")
}

func TestBlobstore_RateLimited(t *testing.T) {
	t.Cleanup(func() { ResetMem("limited") })

	store, err := Open(context.Background(), Config{Provider: ProviderMem, Bucket: "limited", RateLimit: 1, RateBurst: 1})
	require.NoError(t, err)
	_, ok := store.(*RateLimited)
	require.True(t, ok)

	// First call consumes the burst; the second must wait past a cancelled context.
	_, err = store.List(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.List(ctx, "")
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, CodeOf(err))
}

func TestBlobstore_SharedLimiter(t *testing.T) {
	t.Cleanup(func() { ResetMem("shared-a"); ResetMem("shared-b") })

	assert.Nil(t, NewLimiter(0, 5))
	limiter := NewLimiter(1, 1)
	require.NotNil(t, limiter)

	a, err := Open(context.Background(), Config{Provider: ProviderMem, Bucket: "shared-a", Limiter: limiter})
	require.NoError(t, err)
	b, err := Open(context.Background(), Config{Provider: ProviderMem, Bucket: "shared-b", Limiter: limiter})
	require.NoError(t, err)

	// The token taken through a is gone for b as well.
	_, err = a.List(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = b.List(ctx, "")
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, CodeOf(err))
}

// =============================================================================
// AZURE HELPERS
// =============================================================================

func TestAzure_ServiceURL(t *testing.T) {
	tests := []struct {
		name        string
		accountURL  string
		wantURL     string
		wantAccount string
		wantErr     bool
	}{
		{
			name:        "bare host",
			accountURL:  "superconductivetesting.blob.core.windows.net",
			wantURL:     "https://superconductivetesting.blob.core.windows.net",
			wantAccount: "superconductivetesting",
		},
		{
			name:        "with scheme and trailing slash",
			accountURL:  "https://acct.blob.core.windows.net/",
			wantURL:     "https://acct.blob.core.windows.net",
			wantAccount: "acct",
		},
		{
			name:        "azurite",
			accountURL:  "http://127.0.0.1:10000/devstoreaccount1",
			wantURL:     "http://127.0.0.1:10000/devstoreaccount1",
			wantAccount: "devstoreaccount1",
		},
		{name: "empty", accountURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotURL, gotAccount, err := azureServiceURL(tt.accountURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, gotURL)
			assert.Equal(t, tt.wantAccount, gotAccount)
		})
	}
}

func TestAzure_ClassifyCredential(t *testing.T) {
	assert.Equal(t, credentialAnonymous, classifyCredential(""))
	assert.Equal(t, credentialAnonymous, classifyCredential("   "))
	assert.Equal(t, credentialSAS, classifyCredential("?sv=2020-08-04&ss=b&sig=abc"))
	assert.Equal(t, credentialSAS, classifyCredential("sv=2020-08-04&sig=abc"))
	assert.Equal(t, credentialSharedKey, classifyCredential("U29tZUtleQ=="))
}

func TestAzure_NewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    *AzureOptions
		wantErr bool
	}{
		{name: "anonymous", opts: &AzureOptions{AccountURL: "acct.blob.core.windows.net"}},
		{name: "shared key", opts: &AzureOptions{AccountURL: "acct.blob.core.windows.net", Credential: "U29tZUtleQ=="}},
		{name: "sas", opts: &AzureOptions{AccountURL: "acct.blob.core.windows.net", Credential: "?sv=2020&sig=x"}},
		{name: "connection string", opts: &AzureOptions{ConnStr: "DefaultEndpointsProtocol=https;AccountName=test;AccountKey=U29tZUtleQ==;EndpointSuffix=core.windows.net"}},
		{name: "missing url", opts: &AzureOptions{Credential: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newAzureClient(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrors_Classify(t *testing.T) {
	assert.Nil(t, classify(nil, CodeReadFailed))
	assert.Equal(t, CodeTimeout, CodeOf(classify(errors.New("i/o timeout"), CodeReadFailed)))
	assert.Equal(t, CodeEndpointUnreachable, CodeOf(classify(errors.New("dial tcp: connection refused"), CodeReadFailed)))
	assert.Equal(t, CodeBucketNotFound, CodeOf(classify(errors.New("ContainerNotFound"), CodeReadFailed)))
	assert.Equal(t, CodeReadFailed, CodeOf(classify(io.ErrUnexpectedEOF, CodeReadFailed)))

	coded := wrapError(CodeAuthInvalid, false, errors.New("nope"))
	assert.Same(t, coded, classify(coded, CodeReadFailed))
	assert.Equal(t, "E_AUTH_INVALID: nope", coded.Error())
	assert.False(t, coded.RetryableStatus())
}

func TestMinio_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore("bucket", &S3Options{})
	require.Error(t, err)
	assert.Equal(t, CodeEndpointUnreachable, CodeOf(err))

	store, err := NewMinioStore("bucket", &S3Options{EndpointURL: "http://localhost:9000", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}
