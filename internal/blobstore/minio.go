package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements Store against S3-compatible endpoints with minio-go.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a minio-go backed store from S3 options.
func NewMinioStore(bucket string, opts *S3Options) (*MinioStore, error) {
	if opts == nil || opts.EndpointURL == "" {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("endpoint_url is required"))
	}

	u, err := url.Parse(opts.EndpointURL)
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("invalid endpoint URL: %w", err))
	}
	host := u.Host
	if host == "" {
		host = opts.EndpointURL
	}

	var creds *credentials.Credentials
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
	} else {
		creds = credentials.NewStaticV4("", "", "")
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: u.Scheme == "https",
		Region: opts.RegionName,
	})
	if err != nil {
		return nil, wrapError(CodeEndpointUnreachable, true, fmt.Errorf("failed to create minio client: %w", err))
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func openMinio(_ context.Context, cfg Config) (Store, error) {
	return NewMinioStore(cfg.Bucket, cfg.S3)
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objectCh {
		if obj.Err != nil {
			return nil, classifyMinioError(obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		result = append(result, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s *MinioStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, wrapError(CodeObjectNotFound, false, fmt.Errorf("object key is required"))
	}
	// GetObject is lazy; stat first so a missing key fails here.
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return nil, classifyMinioError(err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(err)
	}
	return obj, nil
}

func (s *MinioStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		classified := classifyMinioError(err)
		if classified.Code == CodeObjectNotFound {
			return nil, nil
		}
		return nil, classified
	}
	return &ObjectInfo{Key: key, Size: info.Size, LastModified: info.LastModified, ETag: info.ETag}, nil
}

func (s *MinioStore) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		classified := classifyMinioError(err)
		if classified.Code == CodeObjectNotFound {
			return nil
		}
		return classified
	}
	return nil
}

func (s *MinioStore) Close() error { return nil }

// classifyMinioError converts minio-go errors to *Error.
func classifyMinioError(err error) *Error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return wrapError(CodeBucketNotFound, false, err)
	case "NoSuchKey":
		return wrapError(CodeObjectNotFound, false, err)
	case "AccessDenied":
		return wrapError(CodePermissionDenied, false, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return wrapError(CodeAuthInvalid, false, err)
	}

	lowered := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowered, "timeout"), strings.Contains(lowered, "deadline"):
		return wrapError(CodeTimeout, true, err)
	case strings.Contains(lowered, "connection refused"), strings.Contains(lowered, "no such host"):
		return wrapError(CodeEndpointUnreachable, true, err)
	}
	return wrapError(CodeReadFailed, true, err)
}
