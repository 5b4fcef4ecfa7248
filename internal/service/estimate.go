package service

import (
	"fmt"
	"os"
)

// aesEquivalentPieces is the fragment count at which reassembling a file by
// brute force is comparable to keyspace search on a 128-bit block cipher.
const aesEquivalentPieces = 50

// EstimateMinimumBlockSize returns the smallest even-slicer block size that
// keeps the file at path within the recommended fragment count. A small file
// can return 0, meaning any block size is fine.
func EstimateMinimumBlockSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fi.Size() / aesEquivalentPieces, nil
}
