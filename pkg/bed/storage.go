package bed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Create opens an output destination.
//
// path may be "-" for stdout, s3://bucket/key for an S3 object uploaded
// as it is written, or a local file path. A ".zst" suffix adds zstd
// compression on top of any destination.
func Create(ctx context.Context, path string) (io.WriteCloser, error) {
	var w io.WriteCloser
	var err error

	switch {
	case path == "-":
		w = nopCloser{os.Stdout}
	case IsS3URI(path):
		w, err = newS3Object(ctx, path)
	default:
		w, err = createLocal(path)
	}
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(path, ".zst") {
		return newZstdWriter(w)
	}
	return w, nil
}

// Open opens an input written by Create. Local files, "-" for stdin and
// s3:// objects are supported; ".zst" inputs are decompressed.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	var r io.ReadCloser

	switch {
	case path == "-":
		r = io.NopCloser(os.Stdin)
	case IsS3URI(path):
		data, err := downloadS3Object(ctx, path)
		if err != nil {
			return nil, err
		}
		r = io.NopCloser(bytes.NewReader(data))
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		r = f
	}

	if !strings.HasSuffix(path, ".zst") {
		return r, nil
	}
	dec, err := NewReader(r, true)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &stackedReader{ReadCloser: dec, under: r}, nil
}

// stackedReader closes the decompressor and then the underlying input
type stackedReader struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedReader) Close() error {
	s.ReadCloser.Close()
	return s.under.Close()
}

// downloadS3Object fetches a whole object into memory
func downloadS3Object(ctx context.Context, path string) ([]byte, error) {
	uri, err := ParseS3URI(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	downloader := manager.NewDownloader(s3.NewFromConfig(cfg))
	buf := manager.NewWriteAtBuffer([]byte{})
	_, err = downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", uri.Bucket, uri.Key, err)
	}
	return buf.Bytes(), nil
}

// createLocal creates a local file, making parent directories as needed
func createLocal(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// S3URI represents a parsed S3 URI
type S3URI struct {
	Bucket string
	Key    string
}

// IsS3URI checks if a path is an S3 URI
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ParseS3URI parses an S3 URI like s3://bucket/path/to/object
func ParseS3URI(uri string) (*S3URI, error) {
	if !IsS3URI(uri) {
		return nil, fmt.Errorf("invalid S3 URI %q: must start with s3://", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "s3://"), "/", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("invalid S3 URI %q: missing bucket name", uri)
	}
	if len(parts) < 2 || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return nil, fmt.Errorf("invalid S3 URI %q: missing object key", uri)
	}

	return &S3URI{Bucket: parts[0], Key: parts[1]}, nil
}

// s3Object streams writes into a multipart upload through a pipe
type s3Object struct {
	uri  *S3URI
	pw   *io.PipeWriter
	done chan error
}

func newS3Object(ctx context.Context, path string) (*s3Object, error) {
	uri, err := ParseS3URI(path)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 3
	})

	pr, pw := io.Pipe()
	obj := &s3Object{uri: uri, pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(uri.Bucket),
			Key:    aws.String(uri.Key),
			Body:   pr,
		})
		if err != nil {
			err = fmt.Errorf("failed to upload to s3://%s/%s: %w", uri.Bucket, uri.Key, err)
		}
		// Unblock the writer if the upload failed early
		pr.CloseWithError(err)
		obj.done <- err
	}()

	return obj, nil
}

func (o *s3Object) Write(p []byte) (int, error) {
	return o.pw.Write(p)
}

// Close ends the object and waits for the upload to complete
func (o *s3Object) Close() error {
	if err := o.pw.Close(); err != nil {
		return err
	}
	return <-o.done
}
