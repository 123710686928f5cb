package blobstore

import (
	"context"
	"fmt"
	"os"

	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcp"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const gcsReadWriteScope = "https://www.googleapis.com/auth/devstorage.read_write"

// GCSOptions mirrors the gcs_options block of a datasource document.
type GCSOptions struct {
	// Filename is a service account key file; empty uses default credentials.
	Filename string `yaml:"filename,omitempty" json:"filename,omitempty"`
	Project  string `yaml:"project,omitempty" json:"project,omitempty"`
	// Endpoint with Anonymous targets an emulator such as fake-gcs-server.
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Anonymous bool   `yaml:"anonymous,omitempty" json:"anonymous,omitempty"`
}

func openGCS(ctx context.Context, cfg Config) (Store, error) {
	opts := cfg.GCS
	if opts == nil {
		opts = &GCSOptions{}
	}

	var clientOpts []option.ClientOption
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	if opts.Anonymous {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
		bucket, err := gcsblob.OpenBucket(ctx, gcp.NewAnonymousHTTPClient(gcp.DefaultTransport()), cfg.Bucket, &gcsblob.Options{
			ClientOptions: clientOpts,
		})
		if err != nil {
			return nil, classify(fmt.Errorf("failed to open GCS bucket %s: %w", cfg.Bucket, err), CodeBucketNotFound)
		}
		return NewBucket(bucket), nil
	}

	creds, err := gcsCredentials(ctx, opts.Filename)
	if err != nil {
		return nil, wrapError(CodeAuthInvalid, false, err)
	}
	client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, wrapError(CodeAuthInvalid, false, fmt.Errorf("failed to create authenticated HTTP client: %w", err))
	}

	clientOpts = append(clientOpts, option.WithScopes(gcsReadWriteScope))
	bucket, err := gcsblob.OpenBucket(ctx, client, cfg.Bucket, &gcsblob.Options{ClientOptions: clientOpts})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to open GCS bucket %s: %w", cfg.Bucket, err), CodeBucketNotFound)
	}
	return NewBucket(bucket), nil
}

func gcsCredentials(ctx context.Context, filename string) (*google.Credentials, error) {
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read GCS credentials file: %w", err)
		}
		return google.CredentialsFromJSON(ctx, data, gcsReadWriteScope)
	}
	creds, err := google.FindDefaultCredentials(ctx, gcsReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS default credentials: %w", err)
	}
	return creds, nil
}
