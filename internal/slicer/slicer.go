// Package slicer produces the lazy, ordered, finite block sequence over a
// source file. A Slicer is forward-only and not restartable: every New call
// opens a fresh read cursor.
//
// Block sizing in uneven mode uses math/rand on purpose. The randomness only
// obscures fragment boundaries; it carries no secrecy guarantee.
package slicer

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/mvtan/jigsaw/internal/domain"
)

// Slicer yields consecutive byte blocks from a source file until io.EOF.
type Slicer struct {
	f        *os.File
	fixed    bool
	size     int64
	min, max int64
	rng      *rand.Rand
	done     bool
}

// New builds a slicer for the given session configuration. Uneven mode draws
// block sizes from [BlockSize, 2*BlockSize), matching the historical
// behaviour of passing blocksize and blocksize*2.
func New(path string, cfg domain.SessionConfig) (*Slicer, error) {
	if cfg.Slicer == domain.SlicerUneven {
		return NewUneven(path, cfg.BlockSize, cfg.BlockSize*2)
	}
	return NewEven(path, cfg.BlockSize)
}

// NewEven opens path for fixed-size slicing.
func NewEven(path string, blockSize int64) (*Slicer, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	return &Slicer{f: f, fixed: true, size: blockSize}, nil
}

// NewUneven opens path for randomized slicing with block sizes drawn
// uniformly from [minSize, maxSize).
func NewUneven(path string, minSize, maxSize int64) (*Slicer, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewUnevenSource(path, minSize, maxSize, rng)
}

// NewUnevenSource is NewUneven with a caller-supplied random source, used by
// tests that need reproducible block sizes.
func NewUnevenSource(path string, minSize, maxSize int64, rng *rand.Rand) (*Slicer, error) {
	if minSize <= 0 || maxSize <= minSize {
		return nil, fmt.Errorf("invalid block size bounds [%d, %d)", minSize, maxSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	return &Slicer{f: f, min: minSize, max: maxSize, rng: rng}, nil
}

// Next returns the next block, or io.EOF once the file is exhausted. A
// terminal short read is returned as the final block; a terminal empty read
// is discarded, so a zero-byte source yields no blocks at all. The total
// bytes yielded always equal the file size.
func (s *Slicer) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	size := s.size
	if !s.fixed {
		size = s.min + s.rng.Int63n(s.max-s.min)
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(s.f, buf)
	switch err {
	case nil:
		return buf, nil
	case io.ErrUnexpectedEOF:
		// Short final block; nothing left after it.
		s.done = true
		return buf[:n], nil
	case io.EOF:
		s.done = true
		return nil, io.EOF
	default:
		s.done = true
		return nil, fmt.Errorf("failed to read block: %w", err)
	}
}

// Close releases the underlying file handle.
func (s *Slicer) Close() error {
	return s.f.Close()
}
