package fragmentstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
)

// GCSFragmentRepository manages Google Cloud Storage interactions for fragments.
type GCSFragmentRepository struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSFragmentRepository initializes a new GCSFragmentRepository.
func NewGCSFragmentRepository(client *storage.Client, bucket, prefix string) GCSFragmentRepository {
	return GCSFragmentRepository{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (r *GCSFragmentRepository) object(name string) *storage.ObjectHandle {
	return r.client.Bucket(r.bucket).Object(path.Join(r.prefix, name))
}

// Location returns the store location in gs:// form.
func (r *GCSFragmentRepository) Location() string {
	loc := "gs://" + r.bucket
	if r.prefix != "" {
		loc += "/" + r.prefix
	}
	return loc
}

// StorageType returns the store type.
func (r *GCSFragmentRepository) StorageType() string {
	return string(GCSType)
}

// Write uploads one fragment to GCS.
func (r *GCSFragmentRepository) Write(ctx context.Context, name string, reader io.Reader, quiet bool) (string, error) {
	writer := r.object(name).NewWriter(ctx)

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
		log.Debugf("Uploading to GCS: %s/%s", r.Location(), name)
		bar := progressbar.DefaultBytes(size, "uploading")
		pbReader := progressbar.NewReader(reader, bar)
		proxyReader = &pbReader
	}

	if _, err := io.Copy(writer, proxyReader); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to upload to GCS: %w", err)
	}

	return r.Location() + "/" + name, nil
}

// progressReader wraps a ReadCloser with a progress bar
type progressReader struct {
	r   io.ReadCloser
	bar *progressbar.ProgressBar
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.r.Read(p)
	if pr.bar != nil {
		pr.bar.Add(n)
	}
	return n, err
}

func (pr *progressReader) Close() error {
	return pr.r.Close()
}

// Read downloads one fragment from GCS.
func (r *GCSFragmentRepository) Read(ctx context.Context, name string, quiet bool) (io.ReadCloser, error) {
	obj := r.object(name)

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download from GCS: %w", err)
	}

	if quiet {
		return reader, nil
	}

	attrs, err := obj.Attrs(ctx)
	var bar *progressbar.ProgressBar
	if err == nil {
		bar = progressbar.DefaultBytes(attrs.Size, "downloading")
	}

	return &progressReader{r: reader, bar: bar}, nil
}

// Create opens a streaming GCS write handle, used for the key file.
func (r *GCSFragmentRepository) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return r.object(name).NewWriter(ctx), nil
}

// List returns the object names (prefix stripped) ending in suffix.
func (r *GCSFragmentRepository) List(ctx context.Context, suffix string) ([]string, error) {
	query := &storage.Query{}
	if r.prefix != "" {
		query.Prefix = r.prefix + "/"
	}
	it := r.client.Bucket(r.bucket).Objects(ctx, query)

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", r.Location(), err)
		}
		name := path.Base(attrs.Name)
		if strings.HasSuffix(name, suffix) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes one fragment from GCS.
func (r *GCSFragmentRepository) Delete(ctx context.Context, name string) error {
	if err := r.object(name).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}
