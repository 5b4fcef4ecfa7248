// Package service provides the encode and decode pipelines: the
// orchestration of digesting, slicing, fragment persistence and key-file
// bookkeeping.
//
// Nothing here transforms the source bytes. Fragmentation trades brute-force
// resistance for file-count obfuscation; it is not cryptographic
// confidentiality.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mvtan/jigsaw/internal/digest"
	"github.com/mvtan/jigsaw/internal/domain"
	"github.com/mvtan/jigsaw/internal/keyfile"
	"github.com/mvtan/jigsaw/internal/logging"
	"github.com/mvtan/jigsaw/internal/placement"
	"github.com/mvtan/jigsaw/internal/repository/fragmentstore"
	"github.com/mvtan/jigsaw/internal/slicer"
)

// SessionRegistry records completed encode runs. Implemented by the DynamoDB
// session repository; nil disables registration.
type SessionRegistry interface {
	CreateSession(ctx context.Context, record domain.SessionRecord) (domain.SessionRecord, error)
}

// EncodeService runs the encode pipeline against one or more fragment stores.
type EncodeService struct {
	placer   placement.Placer
	registry SessionRegistry
}

// NewEncodeService creates a new EncodeService. registry may be nil.
func NewEncodeService(placer placement.Placer, registry SessionRegistry) *EncodeService {
	return &EncodeService{
		placer:   placer,
		registry: registry,
	}
}

// Encode fragments the file at sourcePath into the registered stores and
// returns the path of the key file written to the primary store.
//
// Step order matters: existing fragment names are collected before any write
// so collision avoidance covers prior runs; the whole-file digests are taken
// before slicing; the key-file header is flushed before the first fragment
// line. On failure, fragments already written stay on disk.
func (s *EncodeService) Encode(ctx context.Context, sourcePath string, cfg domain.SessionConfig) (string, error) {
	sourcePath, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source path: %w", err)
	}
	log.Infof("Encoding file %s with %s slicer, block size %d", sourcePath, cfg.Slicer, cfg.BlockSize)

	locations := s.placer.Locations()
	if len(locations) == 0 {
		return "", fmt.Errorf("no fragment stores registered")
	}
	primary, err := s.placer.ForLocation(locations[0])
	if err != nil {
		return "", err
	}

	gen, err := s.seedNameGenerator(ctx, cfg)
	if err != nil {
		return "", err
	}

	checksums, err := digest.WholeFile(sourcePath)
	if err != nil {
		return "", err
	}

	header := keyfile.Header{
		Version:      cfg.Version,
		InputDir:     filepath.Dir(sourcePath),
		InputFile:    sourcePath,
		HashLength:   cfg.HashLength,
		Digests:      checksums,
		ParityShards: cfg.ParityShards,
	}

	keyName := filepath.Base(sourcePath) + keyfile.Extension
	keyPath := joinLocation(primary, keyName)
	log.Infof("Writing key file %s", keyPath)

	wc, err := primary.Create(ctx, keyName)
	if err != nil {
		return "", fmt.Errorf("failed to create key file: %w", err)
	}
	kw := keyfile.NewWriter(wc)
	if err := kw.WriteHeader(header); err != nil {
		kw.Close()
		return "", err
	}

	fragments, totalBytes, err := s.writeFragments(ctx, sourcePath, cfg, gen, kw)
	if err != nil {
		kw.Close()
		return "", err
	}
	if err := kw.Close(); err != nil {
		return "", fmt.Errorf("failed to close key file: %w", err)
	}
	log.Infof("%d blocks processed, %d bytes", fragments, totalBytes)

	if s.registry != nil {
		record := domain.SessionRecord{
			Directory:   primary.Location(),
			FileName:    filepath.Base(sourcePath),
			KeyFileName: keyName,
			Fragments:   fragments,
			TotalBytes:  totalBytes,
			SHA256:      checksums.SHA256,
			EncodedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := s.registry.CreateSession(ctx, record); err != nil {
			return "", fmt.Errorf("failed to register encode session: %w", err)
		}
	}

	return keyPath, nil
}

// seedNameGenerator collects the fragment names already present in every
// registered store so this run cannot collide with prior runs.
func (s *EncodeService) seedNameGenerator(ctx context.Context, cfg domain.SessionConfig) (*fragmentstore.NameGenerator, error) {
	var existing []string
	for _, location := range s.placer.Locations() {
		repo, err := s.placer.ForLocation(location)
		if err != nil {
			return nil, err
		}
		names, err := repo.List(ctx, fragmentstore.Extension)
		if err != nil {
			return nil, fmt.Errorf("failed to list existing fragments in %s: %w", location, err)
		}
		existing = append(existing, names...)
	}
	return fragmentstore.NewNameGenerator(cfg.FilenameLength, existing), nil
}

// writeFragments streams the source through the slicer, persisting one
// fragment and one manifest line per block in slicing order. With parity
// requested, the blocks are additionally retained in memory and the parity
// fragments appended under the sidecar scheme.
func (s *EncodeService) writeFragments(ctx context.Context, sourcePath string, cfg domain.SessionConfig,
	gen *fragmentstore.NameGenerator, kw *keyfile.Writer) (int, int64, error) {

	sl, err := slicer.New(sourcePath, cfg)
	if err != nil {
		return 0, 0, err
	}
	defer sl.Close()

	var bar *progressbar.ProgressBar
	if !cfg.Quiet {
		if fi, err := os.Stat(sourcePath); err == nil {
			bar = progressbar.DefaultBytes(fi.Size(), "fragmenting")
		}
	}
	blockLevel := logging.BlockLevel(cfg.Verbose)

	var blocks [][]byte
	seq := 0
	var totalBytes int64
	for {
		block, err := sl.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return seq, totalBytes, err
		}

		entry, err := s.placeFragment(ctx, gen, seq, seq, block, cfg.HashLength)
		if err != nil {
			return seq, totalBytes, err
		}
		if err := kw.WriteEntry(keyfile.SchemeBase, entry); err != nil {
			return seq, totalBytes, err
		}
		log.StandardLogger().Logf(blockLevel, "Code: %s", keyfile.FormatEntry(keyfile.SchemeBase, entry))

		if bar != nil {
			bar.Add(len(block))
		}
		if cfg.ParityShards > 0 {
			blocks = append(blocks, block)
		}
		totalBytes += int64(len(block))
		seq++
	}

	if cfg.ParityShards > 0 && seq > 0 {
		if err := s.writeParity(ctx, blocks, cfg, gen, kw, seq, blockLevel); err != nil {
			return seq, totalBytes, err
		}
	}
	return seq, totalBytes, nil
}

// writeParity appends the Reed-Solomon parity fragments under the sidecar
// scheme. Parity sequence numbers restart at 0 within that scheme.
func (s *EncodeService) writeParity(ctx context.Context, blocks [][]byte, cfg domain.SessionConfig,
	gen *fragmentstore.NameGenerator, kw *keyfile.Writer, placeOffset int, blockLevel log.Level) error {

	parityBlocks, shardSize, err := buildParityShards(blocks, cfg.ParityShards)
	if err != nil {
		return err
	}
	log.Infof("Writing %d parity fragments of %d bytes", len(parityBlocks), shardSize)

	for i, block := range parityBlocks {
		entry, err := s.placeFragment(ctx, gen, placeOffset+i, i, block, cfg.HashLength)
		if err != nil {
			return err
		}
		if err := kw.WriteEntry(keyfile.SchemeParity, entry); err != nil {
			return err
		}
		log.StandardLogger().Logf(blockLevel, "Code: %s", keyfile.FormatEntry(keyfile.SchemeParity, entry))
	}
	return nil
}

// placeFragment writes one block as a fragment into the store the placer
// selects for placeIndex and returns its manifest entry.
func (s *EncodeService) placeFragment(ctx context.Context, gen *fragmentstore.NameGenerator,
	placeIndex, sequence int, block []byte, hashLength int) (keyfile.Entry, error) {

	name, err := gen.Next()
	if err != nil {
		return keyfile.Entry{}, err
	}

	location, repo, err := s.placer.Place(placeIndex)
	if err != nil {
		return keyfile.Entry{}, err
	}
	if _, err := repo.Write(ctx, name, bytes.NewReader(block), true); err != nil {
		return keyfile.Entry{}, fmt.Errorf("failed to store fragment %d: %w", sequence, err)
	}

	return keyfile.Entry{
		Sequence:  sequence,
		Length:    int64(len(block)),
		Directory: location,
		Name:      name,
		Digest:    digest.Truncated(block, hashLength),
	}, nil
}

// joinLocation forms the caller-visible path of an object in a store.
func joinLocation(repo fragmentstore.FragmentRepository, name string) string {
	if repo.StorageType() == string(fragmentstore.FSType) {
		return filepath.Join(repo.Location(), name)
	}
	return repo.Location() + "/" + name
}
