// Package digest computes the whole-file and per-block digests used for
// fidelity checking. The six whole-file algorithms and their order are part
// of the key-file format and cannot change without a new version tag.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/mvtan/jigsaw/internal/domain"
)

// chunkSize is the read size used when streaming a file through the hashes.
const chunkSize = 4096

// WholeFile streams the file at path through md5, sha1, sha224, sha256,
// sha384 and sha512 in one pass and returns the hex-encoded digests.
func WholeFile(path string) (domain.DigestSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.DigestSet{}, fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	hashes := []hash.Hash{
		md5.New(),
		sha1.New(),
		sha256.New224(),
		sha256.New(),
		sha512.New384(),
		sha512.New(),
	}
	writers := make([]io.Writer, len(hashes))
	for i, h := range hashes {
		writers[i] = h
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(io.MultiWriter(writers...), f, buf); err != nil {
		return domain.DigestSet{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return domain.DigestSet{
		MD5:    hex.EncodeToString(hashes[0].Sum(nil)),
		SHA1:   hex.EncodeToString(hashes[1].Sum(nil)),
		SHA224: hex.EncodeToString(hashes[2].Sum(nil)),
		SHA256: hex.EncodeToString(hashes[3].Sum(nil)),
		SHA384: hex.EncodeToString(hashes[4].Sum(nil)),
		SHA512: hex.EncodeToString(hashes[5].Sum(nil)),
	}, nil
}

// Truncated returns the first length hex characters of the sha256 digest of
// one block. Lengths beyond the full digest return the whole digest.
func Truncated(block []byte, length int) string {
	sum := sha256.Sum256(block)
	s := hex.EncodeToString(sum[:])
	if length <= 0 || length >= len(s) {
		return s
	}
	return s[:length]
}
