package interfaces

import "context"

// S3Dest identifies one stored object.
type S3Dest struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Path   string `json:"path" yaml:"path"`
}

type ObjectStore interface {
	Upload(ctx context.Context, localPath, dest string) (S3Dest, error)
	Copy(ctx context.Context, srcBucket, srcPath, destBucket, destPrefix string, nameOnly bool) (S3Dest, S3Dest, error)
}
