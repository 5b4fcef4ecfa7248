package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestWholeFile(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		md5     string
		sha1    string
		sha224  string
		sha256  string
		sha384  string
		sha512  string
	}{
		{
			name:    "empty file",
			content: nil,
			md5:     "d41d8cd98f00b204e9800998ecf8427e",
			sha1:    "da39a3ee5e6b4b0d3255bfef95601890afd80709",
			sha224:  "d14a028c2a3a2bc9476102bb288234c415a2b01f828ea62ac5b3e42f",
			sha256:  "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			sha384:  "38b060a751ac96384cd9327eb1b1e36a21fdb71114be07434c0cc7bf63f6e1da274edebfe76f65fbd51ad2f14898b95b",
			sha512:  "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
		},
		{
			name:    "known vector",
			content: []byte("abc"),
			md5:     "900150983cd24fb0d6963f7d28e17f72",
			sha1:    "a9993e364706816aba3e25717850c26c9cd0d89d",
			sha224:  "23097d223405d8228642a477bda255b32aadbce4bda0b3f7e36c9da7",
			sha256:  "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			sha384:  "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7",
			sha512:  "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.content)

			got, err := WholeFile(path)
			require.NoError(t, err)

			assert.Equal(t, tt.md5, got.MD5)
			assert.Equal(t, tt.sha1, got.SHA1)
			assert.Equal(t, tt.sha224, got.SHA224)
			assert.Equal(t, tt.sha256, got.SHA256)
			assert.Equal(t, tt.sha384, got.SHA384)
			assert.Equal(t, tt.sha512, got.SHA512)
		})
	}
}

func TestWholeFileLargerThanChunk(t *testing.T) {
	content := make([]byte, chunkSize*3+17)
	for i := range content {
		content[i] = byte(i % 251)
	}
	path := writeTempFile(t, content)

	first, err := WholeFile(path)
	require.NoError(t, err)
	second, err := WholeFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.SHA256, 64)
	assert.Len(t, first.SHA512, 128)
}

func TestWholeFileMissing(t *testing.T) {
	_, err := WholeFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestTruncated(t *testing.T) {
	full := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

	tests := []struct {
		name   string
		length int
		want   string
	}{
		{name: "default length", length: 16, want: full[:16]},
		{name: "full digest", length: 64, want: full},
		{name: "beyond digest", length: 100, want: full},
		{name: "zero falls back to full", length: 0, want: full},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncated([]byte("abc"), tt.length))
		})
	}
}

func TestTruncatedDistinguishesBlocks(t *testing.T) {
	a := Truncated([]byte("block one"), 16)
	b := Truncated([]byte("block two"), 16)
	assert.NotEqual(t, a, b)
}
