package storage

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
)

const defaultRegion = "us-east-1"

// API is the part of *s3.Client we use.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
}

type S3Client struct {
	api    API
	bucket string
	prefix string
	logger interfaces.Logger
}

// NewS3Client builds a client for AWS or any S3-compatible endpoint.
// A custom endpoint switches to path-style addressing.
func NewS3Client(opts Options, logger interfaces.Logger) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, &apperrors.ValidationError{Field: "s3.bucket", Message: "bucket is required"}
	}
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}
	cfg := aws.Config{Region: region}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
	} else {
		cfg.Credentials = aws.AnonymousCredentials{}
	}
	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ClientWithAPI(api, opts.Bucket, opts.Prefix, logger), nil
}

func NewS3ClientWithAPI(api API, bucket, prefix string, logger interfaces.Logger) *S3Client {
	return &S3Client{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

func (c *S3Client) Bucket() string { return c.bucket }

// BuildPath returns prefix+dest, with dest defaulting to the base name of filename.
func (c *S3Client) BuildPath(filename, dest string) string {
	if dest == "" {
		dest = path.Base(filepath.ToSlash(filename))
	}
	return c.prefix + dest
}

func (c *S3Client) Upload(ctx context.Context, localPath, dest string) (interfaces.S3Dest, error) {
	key := c.BuildPath(localPath, dest)
	f, err := os.Open(localPath)
	if err != nil {
		return interfaces.S3Dest{}, &apperrors.StorageError{Op: "upload", Bucket: c.bucket, Key: key, Err: err}
	}
	defer f.Close()

	in := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		in.ContentType = aws.String(ct)
	}
	if _, err := c.api.PutObject(ctx, in); err != nil {
		return interfaces.S3Dest{}, &apperrors.StorageError{Op: "upload", Bucket: c.bucket, Key: key, Err: err}
	}
	c.logger.Debug(fmt.Sprintf("Uploaded %s to s3://%s/%s", localPath, c.bucket, key))
	return interfaces.S3Dest{Bucket: c.bucket, Path: key}, nil
}

// CopyPath computes the destination key of Copy.
func CopyPath(srcPath, destPrefix string, nameOnly bool) string {
	if destPrefix == "" {
		return srcPath
	}
	if nameOnly {
		return destPrefix + path.Base(srcPath)
	}
	return destPrefix + srcPath
}

// Copy performs a server-side copy and returns (source, destination).
func (c *S3Client) Copy(ctx context.Context, srcBucket, srcPath, destBucket, destPrefix string, nameOnly bool) (interfaces.S3Dest, interfaces.S3Dest, error) {
	src := interfaces.S3Dest{Bucket: srcBucket, Path: srcPath}
	dest := interfaces.S3Dest{Bucket: destBucket, Path: CopyPath(srcPath, destPrefix, nameOnly)}

	in := &s3.CopyObjectInput{
		Bucket:     aws.String(dest.Bucket),
		Key:        aws.String(dest.Path),
		CopySource: aws.String(copySource(srcBucket, srcPath)),
	}
	if _, err := c.api.CopyObject(ctx, in); err != nil {
		return src, dest, &apperrors.StorageError{Op: "copy", Bucket: dest.Bucket, Key: dest.Path, Err: err}
	}
	c.logger.Info(fmt.Sprintf("Copied s3://%s/%s to s3://%s/%s", src.Bucket, src.Path, dest.Bucket, dest.Path))
	return src, dest, nil
}

func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

var _ interfaces.ObjectStore = (*S3Client)(nil)
