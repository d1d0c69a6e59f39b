// Package s3 wraps the object-store operations the extract job needs:
// uploading dataset files and wiping a dataset prefix for overwrite mode.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Config carries the credentials and region for a session, mirroring the
// ACCESS_KEY / SECRET_KEY / REGION environment contract of the extract job.
type Config struct {
	AccessKey string
	SecretKey string
	Region    string
}

// ConfigFromEnv reads the session settings from the environment.
func ConfigFromEnv() Config {
	return Config{
		AccessKey: os.Getenv("ACCESS_KEY"),
		SecretKey: os.Getenv("SECRET_KEY"),
		Region:    os.Getenv("REGION"),
	}
}

type Store struct {
	api s3iface.S3API
}

// New builds a Store from an explicit session config. Empty credentials fall
// back to the SDK's default provider chain.
func New(cfg Config) (*Store, error) {
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return NewWithClient(awss3.New(sess)), nil
}

// NewWithClient builds a Store over an existing API client.
func NewWithClient(api s3iface.S3API) *Store {
	return &Store{api: api}
}

// Put uploads body to s3://bucket/key as a single object. Datasets arrive
// here fully encoded in memory, so there is no need for multipart uploads.
func (s *Store) Put(ctx context.Context, bucket, key string, body io.ReadSeeker) error {
	_, err := s.api.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// DeletePrefix removes every object under prefix and reports how many were
// deleted. This is the overwrite half of dataset overwrite semantics.
func (s *Store) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	deleted := 0
	var pageErr error
	err := s.api.ListObjectsV2PagesWithContext(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *awss3.ListObjectsV2Output, lastPage bool) bool {
		if len(page.Contents) == 0 {
			return true
		}
		objs := make([]*awss3.ObjectIdentifier, 0, len(page.Contents))
		for _, o := range page.Contents {
			objs = append(objs, &awss3.ObjectIdentifier{Key: o.Key})
		}
		_, pageErr = s.api.DeleteObjectsWithContext(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &awss3.Delete{Objects: objs, Quiet: aws.Bool(true)},
		})
		if pageErr != nil {
			return false
		}
		deleted += len(objs)
		return true
	})
	if err == nil {
		err = pageErr
	}
	if err != nil {
		return deleted, fmt.Errorf("delete s3://%s/%s: %w", bucket, prefix, err)
	}
	return deleted, nil
}

// ParseURL splits an s3://bucket/prefix URL. The prefix may be empty.
func ParseURL(u string) (bucket, prefix string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(u, scheme) {
		return "", "", fmt.Errorf("not an s3 url: %s", u)
	}
	rest := strings.TrimPrefix(u, scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in s3 url: %s", u)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
