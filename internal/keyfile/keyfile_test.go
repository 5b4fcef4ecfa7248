package keyfile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvtan/jigsaw/internal/domain"
)

type bufferCloser struct {
	bytes.Buffer
}

func (b *bufferCloser) Close() error { return nil }

func testHeader() Header {
	return Header{
		Version:    domain.VersionOne,
		InputDir:   "/data",
		InputFile:  "/data/report.pdf",
		HashLength: 16,
		Digests: domain.DigestSet{
			MD5:    "md5value",
			SHA1:   "sha1value",
			SHA224: "sha224value",
			SHA256: "sha256value",
			SHA384: "sha384value",
			SHA512: "sha512value",
		},
	}
}

func TestWriteParseRoundTrip(t *testing.T) {
	var buf bufferCloser
	w := NewWriter(&buf)

	header := testHeader()
	header.ParityShards = 2
	require.NoError(t, w.WriteHeader(header))

	entries := []Entry{
		{Sequence: 0, Length: 4096, Directory: "/data", Name: "Abc123.jig", Digest: "aaaa"},
		{Sequence: 1, Length: 4096, Directory: "/data", Name: "Xyz789.jig", Digest: "bbbb"},
		{Sequence: 2, Length: 1808, Directory: "/other", Name: "Qrs456.jig", Digest: "cccc"},
	}
	for _, e := range entries {
		require.NoError(t, w.WriteEntry(SchemeBase, e))
	}
	require.NoError(t, w.WriteEntry(SchemeParity, Entry{Sequence: 0, Length: 4096, Directory: "/data", Name: "Par000.jig", Digest: "dddd"}))
	require.NoError(t, w.Close())

	kf, err := Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, header, kf.Header)
	assert.Equal(t, entries, kf.Manifest(SchemeBase))
	require.Len(t, kf.Manifest(SchemeParity), 1)
	assert.Equal(t, "Par000.jig", kf.Manifest(SchemeParity)[0].Name)
}

func TestHeaderLineFormat(t *testing.T) {
	var buf bufferCloser
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(testHeader()))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "#version>>JigsawFileONE", lines[0])
	assert.Equal(t, "#inputdir>>/data", lines[1])
	assert.Equal(t, "#infile>>/data/report.pdf", lines[2])
	assert.Equal(t, "#hashlength>>16", lines[3])
	assert.Equal(t, "#md5>>md5value", lines[4])
	assert.Equal(t, "#sha512>>sha512value", lines[9])
}

func TestParityShardsOmittedWhenZero(t *testing.T) {
	var buf bufferCloser
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(testHeader()))
	require.NoError(t, w.Close())

	assert.NotContains(t, buf.String(), FieldParityShards)

	kf, err := Parse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, kf.Header.ParityShards)
}

func TestManifestSortsBySequence(t *testing.T) {
	input := strings.Join([]string{
		"#version>>JigsawFileONE",
		"#inputdir>>/data",
		"#infile>>/data/report.pdf",
		"#hashlength>>16",
		"#md5>>m", "#sha1>>s1", "#sha224>>s224", "#sha256>>s256", "#sha384>>s384", "#sha512>>s512",
		"AA>>2>>100>>/data>>c.jig>>cc",
		"AA>>0>>100>>/data>>a.jig>>aa",
		"AA>>1>>100>>/data>>b.jig>>bb",
	}, "\n")

	kf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	manifest := kf.Manifest(SchemeBase)
	require.Len(t, manifest, 3)
	for i, e := range manifest {
		assert.Equal(t, i, e.Sequence)
	}
	assert.Equal(t, "a.jig", manifest[0].Name)
	assert.Equal(t, "c.jig", manifest[2].Name)
}

func TestParseErrors(t *testing.T) {
	validHeader := strings.Join([]string{
		"#version>>JigsawFileONE",
		"#inputdir>>/data",
		"#infile>>/data/report.pdf",
		"#hashlength>>16",
		"#md5>>m", "#sha1>>s1", "#sha224>>s224", "#sha256>>s256", "#sha384>>s384", "#sha512>>s512",
	}, "\n")

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name: "missing digest field",
			input: strings.Join([]string{
				"#version>>JigsawFileONE",
				"#inputdir>>/data",
				"#infile>>/data/report.pdf",
				"#hashlength>>16",
				"#md5>>m",
			}, "\n"),
			wantErr: "missing required field",
		},
		{
			name:    "missing version",
			input:   "#inputdir>>/data",
			wantErr: "missing required field \"version\"",
		},
		{
			name:    "wrong field count",
			input:   validHeader + "\nAA>>0>>100>>/data>>a.jig",
			wantErr: "expected 6 fields, got 5",
		},
		{
			name:    "unknown scheme",
			input:   validHeader + "\nZZ>>0>>100>>/data>>a.jig>>aa",
			wantErr: "unknown scheme code",
		},
		{
			name:    "bad sequence number",
			input:   validHeader + "\nAA>>x>>100>>/data>>a.jig>>aa",
			wantErr: "bad sequence number",
		},
		{
			name:    "bad hash length",
			input:   strings.Replace(validHeader, "#hashlength>>16", "#hashlength>>long", 1),
			wantErr: "bad hashlength",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseIgnoresBlankLines(t *testing.T) {
	input := strings.Join([]string{
		"#version>>JigsawFileONE",
		"",
		"#inputdir>>/data",
		"#infile>>/data/report.pdf",
		"#hashlength>>16",
		"#md5>>m", "#sha1>>s1", "#sha224>>s224", "#sha256>>s256", "#sha384>>s384", "#sha512>>s512",
		"",
		"AA>>0>>100>>/data>>a.jig>>aa",
		"",
	}, "\n")

	kf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, kf.Manifest(SchemeBase), 1)
}

func TestParseKeepsUnknownHeaderFields(t *testing.T) {
	input := strings.Join([]string{
		"#version>>JigsawFileONE",
		"#inputdir>>/data",
		"#infile>>/data/report.pdf",
		"#hashlength>>16",
		"#md5>>m", "#sha1>>s1", "#sha224>>s224", "#sha256>>s256", "#sha384>>s384", "#sha512>>s512",
		"#comment>>experimental run",
	}, "\n")

	kf, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "experimental run", kf.Fields["comment"])
}

func TestFormatEntry(t *testing.T) {
	e := Entry{Sequence: 7, Length: 1808, Directory: "/data", Name: "a.jig", Digest: "beef"}
	assert.Equal(t, "AA>>7>>1808>>/data>>a.jig>>beef", FormatEntry(SchemeBase, e))
}
