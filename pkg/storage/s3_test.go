package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/perarneng/gmail2s3/pkg/apperrors"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/logger"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	copies  []*s3.CopyObjectInput
	failPut error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	_ = ctx
	_ = optFns
	if f.failPut != nil {
		return nil, f.failPut
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	_ = ctx
	_ = optFns
	f.copies = append(f.copies, in)
	return &s3.CopyObjectOutput{}, nil
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestUploadDefaultsToBaseName(t *testing.T) {
	fake := &fakeS3{}
	client := NewS3ClientWithAPI(fake, "archive", "gmail/", logger.Discard())
	local := writeTemp(t, "report.pdf", "pdf")

	dest, err := client.Upload(context.Background(), local, "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if dest != (interfaces.S3Dest{Bucket: "archive", Path: "gmail/report.pdf"}) {
		t.Fatalf("unexpected dest %+v", dest)
	}
	if aws.ToString(fake.puts[0].Key) != "gmail/report.pdf" || fake.bodies[0] != "pdf" {
		t.Fatalf("unexpected put %+v body %q", fake.puts[0], fake.bodies[0])
	}
	if aws.ToString(fake.puts[0].ContentType) != "application/pdf" {
		t.Fatalf("unexpected content type %q", aws.ToString(fake.puts[0].ContentType))
	}
}

func TestUploadWithKey(t *testing.T) {
	fake := &fakeS3{}
	client := NewS3ClientWithAPI(fake, "archive", "", logger.Discard())
	local := writeTemp(t, "m1.json", "{}")

	dest, err := client.Upload(context.Background(), local, "2024/01/m1/m1.json")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if dest.Path != "2024/01/m1/m1.json" {
		t.Fatalf("unexpected path %q", dest.Path)
	}
}

func TestUploadErrorIsStorageError(t *testing.T) {
	client := NewS3ClientWithAPI(&fakeS3{failPut: errors.New("boom")}, "archive", "", logger.Discard())
	local := writeTemp(t, "a.txt", "x")
	_, err := client.Upload(context.Background(), local, "")
	var se *apperrors.StorageError
	if !errors.As(err, &se) || se.Key != "a.txt" {
		t.Fatalf("expected StorageError for a.txt, got %v", err)
	}

	_, err = client.Upload(context.Background(), "/does/not/exist", "")
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError for missing file, got %v", err)
	}
}

func TestCopy(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		nameOnly bool
		wantPath string
	}{
		{name: "no-prefix", prefix: "", wantPath: "x/y.txt"},
		{name: "no-prefix-name-only", prefix: "", nameOnly: true, wantPath: "x/y.txt"},
		{name: "prefix", prefix: "copies/", wantPath: "copies/x/y.txt"},
		{name: "prefix-name-only", prefix: "copies/", nameOnly: true, wantPath: "copies/y.txt"},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeS3{}
			client := NewS3ClientWithAPI(fake, "a", "", logger.Discard())
			src, dest, err := client.Copy(context.Background(), "a", "x/y.txt", "b", tc.prefix, tc.nameOnly)
			if err != nil {
				t.Fatalf("copy: %v", err)
			}
			if src != (interfaces.S3Dest{Bucket: "a", Path: "x/y.txt"}) {
				t.Fatalf("unexpected src %+v", src)
			}
			if dest != (interfaces.S3Dest{Bucket: "b", Path: tc.wantPath}) {
				t.Fatalf("unexpected dest %+v", dest)
			}
			if aws.ToString(fake.copies[0].CopySource) != "a/x/y.txt" {
				t.Fatalf("unexpected copy source %q", aws.ToString(fake.copies[0].CopySource))
			}
		})
	}
}

func TestCopySourceEscapes(t *testing.T) {
	if got := copySource("bkt", "2024/01/my file+1.pdf"); got != "bkt/2024/01/my%20file+1.pdf" {
		t.Fatalf("unexpected copy source %q", got)
	}
}

func TestNewS3ClientRequiresBucket(t *testing.T) {
	_, err := NewS3Client(Options{}, logger.Discard())
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
