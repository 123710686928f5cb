package blobstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob/s3blob"
)

// S3Options mirrors the boto3_options block of a datasource document.
type S3Options struct {
	// EndpointURL points at an S3-compatible service; when set the minio
	// provider is used instead of the AWS SDK.
	EndpointURL     string `yaml:"endpoint_url,omitempty" json:"endpoint_url,omitempty"`
	RegionName      string `yaml:"region_name,omitempty" json:"region_name,omitempty"`
	AccessKeyID     string `yaml:"aws_access_key_id,omitempty" json:"aws_access_key_id,omitempty"`
	SecretAccessKey string `yaml:"aws_secret_access_key,omitempty" json:"aws_secret_access_key,omitempty"`
	SessionToken    string `yaml:"aws_session_token,omitempty" json:"aws_session_token,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style,omitempty" json:"use_path_style,omitempty"`
}

const defaultS3Region = "us-east-1"

func openS3(ctx context.Context, cfg Config) (Store, error) {
	opts := cfg.S3
	if opts == nil {
		opts = &S3Options{}
	}
	if opts.EndpointURL != "" {
		return openMinio(ctx, cfg)
	}

	awsCfg, err := buildAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
	})

	bucket, err := s3blob.OpenBucketV2(ctx, client, cfg.Bucket, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to open S3 bucket %s: %w", cfg.Bucket, err), CodeBucketNotFound)
	}
	return NewBucket(bucket), nil
}

func buildAWSConfig(ctx context.Context, opts *S3Options) (aws.Config, error) {
	region := opts.RegionName
	if region == "" {
		region = defaultS3Region
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, wrapError(CodeAuthInvalid, false, fmt.Errorf("failed to load AWS config: %w", err))
	}
	return awsCfg, nil
}
