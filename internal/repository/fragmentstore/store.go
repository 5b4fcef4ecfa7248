// Package fragmentstore provides fragment persistence backends and their factory.
//
// A fragment store holds the uniquely named fragment files produced by an
// encode run, plus the key file itself. The default backend is a local
// directory; S3 and GCS backends let fragments travel via separate remote
// containers.
package fragmentstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mvtan/jigsaw/internal/config"
)

// Extension is the suffix of every fragment file.
const Extension = ".jig"

// FragmentRepository defines the interface for fragment storage operations.
// Write and Read move whole fragments; Create returns a streaming handle
// used for the key file so its header can be flushed before slicing starts.
type FragmentRepository interface {
	Write(ctx context.Context, name string, r io.Reader, quiet bool) (string, error)
	Read(ctx context.Context, name string, quiet bool) (io.ReadCloser, error)
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	List(ctx context.Context, suffix string) ([]string, error)
	Delete(ctx context.Context, name string) error
	Location() string
	StorageType() string
}

// RepositoryType represents the kind of fragment storage backing a location.
type RepositoryType string

const (
	FSType  RepositoryType = "fs"
	S3Type  RepositoryType = "s3"
	GCSType RepositoryType = "gcs"
)

// StoreConfig is a parsed store location.
type StoreConfig struct {
	Type   RepositoryType
	Bucket string
	Prefix string
	// Dir is the directory path for local stores.
	Dir string
}

// ParseStoreLocation parses a fragment store location string.
// Formats: "s3://bucket[/prefix]", "gs://bucket[/prefix]", anything else is
// a local directory path.
func ParseStoreLocation(location string) (StoreConfig, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return StoreConfig{}, fmt.Errorf("store location cannot be empty")
	}

	if !strings.Contains(location, "://") {
		return StoreConfig{Type: FSType, Dir: location}, nil
	}

	parts := strings.SplitN(location, "://", 2)
	scheme := strings.ToLower(strings.TrimSpace(parts[0]))
	rest := strings.Trim(strings.TrimSpace(parts[1]), "/")
	if rest == "" {
		return StoreConfig{}, fmt.Errorf("bucket name cannot be empty in %q", location)
	}

	bucket, prefix := rest, ""
	if i := strings.Index(rest, "/"); i >= 0 {
		bucket, prefix = rest[:i], rest[i+1:]
	}

	switch scheme {
	case "s3":
		return StoreConfig{Type: S3Type, Bucket: bucket, Prefix: prefix}, nil
	case "gs":
		return StoreConfig{Type: GCSType, Bucket: bucket, Prefix: prefix}, nil
	default:
		return StoreConfig{}, fmt.Errorf("unsupported store scheme: %s", scheme)
	}
}

// Factory creates fragment repository instances from location strings.
// Cloud clients are created lazily on first use, so purely local runs never
// touch credential chains.
type Factory struct {
	mu        sync.Mutex
	awsLoaded bool
	gcsClient *storage.Client
	s3Client  *s3.Client
	repos     map[string]FragmentRepository
}

// NewFactory creates a new factory.
func NewFactory() *Factory {
	return &Factory{repos: make(map[string]FragmentRepository)}
}

// Repository returns (building and caching if needed) the repository for a
// store location.
func (f *Factory) Repository(ctx context.Context, location string) (FragmentRepository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if repo, ok := f.repos[location]; ok {
		return repo, nil
	}

	cfg, err := ParseStoreLocation(location)
	if err != nil {
		return nil, err
	}

	var repo FragmentRepository
	switch cfg.Type {
	case FSType:
		fsRepo, err := NewFSFragmentRepository(cfg.Dir)
		if err != nil {
			return nil, err
		}
		repo = fsRepo
	case S3Type:
		client, err := f.s3ClientLocked(ctx)
		if err != nil {
			return nil, err
		}
		s3Repo := NewS3FragmentRepository(client, cfg.Bucket, cfg.Prefix)
		repo = &s3Repo
	case GCSType:
		client, err := f.gcsClientLocked(ctx)
		if err != nil {
			return nil, err
		}
		gcsRepo := NewGCSFragmentRepository(client, cfg.Bucket, cfg.Prefix)
		repo = &gcsRepo
	default:
		return nil, fmt.Errorf("unsupported repository type: %s", cfg.Type)
	}

	f.repos[location] = repo
	return repo, nil
}

func (f *Factory) s3ClientLocked(ctx context.Context) (*s3.Client, error) {
	if f.awsLoaded {
		return f.s3Client, nil
	}
	awsCfg, err := config.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	f.s3Client = s3.NewFromConfig(awsCfg)
	f.awsLoaded = true
	return f.s3Client, nil
}

func (f *Factory) gcsClientLocked(ctx context.Context) (*storage.Client, error) {
	if f.gcsClient != nil {
		return f.gcsClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create GCS client: %w", err)
	}
	f.gcsClient = client
	return f.gcsClient, nil
}
