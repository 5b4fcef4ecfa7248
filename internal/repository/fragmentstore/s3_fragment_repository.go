package fragmentstore

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/schollz/progressbar/v3"
)

// S3FragmentRepository manages S3 interactions for fragments.
type S3FragmentRepository struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3FragmentRepository initializes a new S3FragmentRepository.
func NewS3FragmentRepository(client *s3.Client, bucket, prefix string) S3FragmentRepository {
	return S3FragmentRepository{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (r *S3FragmentRepository) key(name string) string {
	return path.Join(r.prefix, name)
}

// Location returns the store location in s3:// form.
func (r *S3FragmentRepository) Location() string {
	loc := "s3://" + r.bucket
	if r.prefix != "" {
		loc += "/" + r.prefix
	}
	return loc
}

// StorageType returns the store type.
func (r *S3FragmentRepository) StorageType() string {
	return string(S3Type)
}

// Write uploads one fragment to S3.
func (r *S3FragmentRepository) Write(ctx context.Context, name string, reader io.Reader, quiet bool) (string, error) {
	seeker, ok := reader.(io.Seeker)
	var size int64 = -1
	if ok {
		if current, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			if end, err := seeker.Seek(0, io.SeekEnd); err == nil {
				size = end - current
				seeker.Seek(current, io.SeekStart)
			}
		}
	}

	var proxyReader io.Reader = reader
	if !quiet {
		bar := progressbar.DefaultBytes(size, "uploading")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(name)),
		Body:   proxyReader,
	}
	if size > 0 {
		input.ContentLength = &size
	}

	_, err := r.client.PutObject(ctx, input)
	if err != nil {
		return "", err
	}
	return r.Location() + "/" + name, nil
}

// Read downloads one fragment from S3.
func (r *S3FragmentRepository) Read(ctx context.Context, name string, quiet bool) (io.ReadCloser, error) {
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(name)),
	})
	if err != nil {
		return nil, err
	}

	if !quiet && result.ContentLength != nil {
		bar := progressbar.DefaultBytes(*result.ContentLength, "downloading")
		proxyReader := progressbar.NewReader(result.Body, bar)
		return &progressReaderCloser{Reader: &proxyReader, Closer: result.Body}, nil
	}
	return result.Body, nil
}

type progressReaderCloser struct {
	io.Reader
	io.Closer
}

// Create returns a write handle that buffers in memory and uploads on Close.
// The key file is small relative to the fragments, so buffering is fine; S3
// PutObject wants sized bodies anyway.
type s3UploadWriter struct {
	repo *S3FragmentRepository
	ctx  context.Context
	name string
	buf  bytes.Buffer
}

func (w *s3UploadWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3UploadWriter) Close() error {
	_, err := w.repo.Write(w.ctx, w.name, bytes.NewReader(w.buf.Bytes()), true)
	return err
}

// Create opens a deferred-upload write handle for the given name.
func (r *S3FragmentRepository) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return &s3UploadWriter{repo: r, ctx: ctx, name: name}, nil
}

// List returns the object names (prefix stripped) ending in suffix.
func (r *S3FragmentRepository) List(ctx context.Context, suffix string) ([]string, error) {
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
	}
	if r.prefix != "" {
		listInput.Prefix = aws.String(r.prefix + "/")
	}

	var names []string
	for {
		result, err := r.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, err
		}

		for _, obj := range result.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if strings.HasSuffix(name, suffix) {
				names = append(names, name)
			}
		}

		if result.IsTruncated == nil || !*result.IsTruncated {
			break
		}
		listInput.ContinuationToken = result.NextContinuationToken
	}
	return names, nil
}

// Delete removes one fragment from S3.
func (r *S3FragmentRepository) Delete(ctx context.Context, name string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(name)),
	})
	return err
}
