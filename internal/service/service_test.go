package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvtan/jigsaw/internal/domain"
	jerrors "github.com/mvtan/jigsaw/internal/errors"
	"github.com/mvtan/jigsaw/internal/keyfile"
	"github.com/mvtan/jigsaw/internal/placement"
	"github.com/mvtan/jigsaw/internal/repository/fragmentstore"
)

func testConfig() domain.SessionConfig {
	cfg := domain.DefaultSessionConfig()
	cfg.BlockSize = 1024
	cfg.Quiet = true
	return cfg
}

func writeSource(t *testing.T, size int) string {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = byte((i * 7) % 256)
	}
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

// mockRegistry records session registrations in memory.
type mockRegistry struct {
	records []domain.SessionRecord
}

func (m *mockRegistry) CreateSession(ctx context.Context, record domain.SessionRecord) (domain.SessionRecord, error) {
	m.records = append(m.records, record)
	return record, nil
}

func encodeInto(t *testing.T, sourcePath string, cfg domain.SessionConfig, registry SessionRegistry, stores ...string) string {
	t.Helper()
	factory := fragmentstore.NewFactory()
	placer := placement.NewRoundRobinPlacer()
	for _, location := range stores {
		repo, err := factory.Repository(context.Background(), location)
		require.NoError(t, err)
		require.NoError(t, placer.RegisterStore(location, repo))
	}

	keyPath, err := NewEncodeService(placer, registry).Encode(context.Background(), sourcePath, cfg)
	require.NoError(t, err)
	return keyPath
}

func decodeKey(t *testing.T, keyPath, outputPath, fragmentDir string, cfg domain.SessionConfig) (domain.FidelityReport, error) {
	t.Helper()
	return NewDecodeService(fragmentstore.NewFactory()).Decode(context.Background(), keyPath, outputPath, fragmentDir, cfg)
}

func parseKeyFile(t *testing.T, keyPath string) *keyfile.KeyFile {
	t.Helper()
	f, err := os.Open(keyPath)
	require.NoError(t, err)
	defer f.Close()

	kf, err := keyfile.Parse(f)
	require.NoError(t, err)
	return kf
}

func requireSameContent(t *testing.T, sourcePath, outputPath string) {
	t.Helper()
	want, err := os.ReadFile(sourcePath)
	require.NoError(t, err)
	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mode domain.SlicerMode
		size int
	}{
		{name: "even slicing", mode: domain.SlicerEven, size: 10*1024 + 37},
		{name: "uneven slicing", mode: domain.SlicerUneven, size: 10*1024 + 37},
		{name: "single block", mode: domain.SlicerEven, size: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Slicer = tt.mode
			sourcePath := writeSource(t, tt.size)
			storeDir := t.TempDir()

			keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)
			assert.Equal(t, filepath.Join(storeDir, "source.bin"+keyfile.Extension), keyPath)

			report, err := decodeKey(t, keyPath, "", "", cfg)
			require.NoError(t, err)

			assert.True(t, report.Intact())
			assert.Equal(t, int64(tt.size), report.ActualBytes)
			assert.Empty(t, report.MismatchedFragments)
			requireSameContent(t, sourcePath, report.OutputPath)

			audit, err := os.ReadFile(report.AuditPath)
			require.NoError(t, err)
			assert.Contains(t, string(audit), "fragments processed")
		})
	}
}

func TestEncodeWritesManifest(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 4096+100)
	storeDir := t.TempDir()

	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)
	kf := parseKeyFile(t, keyPath)

	assert.Equal(t, domain.VersionOne, kf.Header.Version)
	assert.Equal(t, sourcePath, kf.Header.InputFile)
	assert.Equal(t, 16, kf.Header.HashLength)

	manifest := kf.Manifest(keyfile.SchemeBase)
	require.Len(t, manifest, 5)
	var total int64
	for i, e := range manifest {
		assert.Equal(t, i, e.Sequence)
		assert.Equal(t, storeDir, e.Directory)
		assert.True(t, strings.HasSuffix(e.Name, fragmentstore.Extension))
		assert.Len(t, e.Digest, 16)
		total += e.Length
	}
	assert.Equal(t, int64(4096+100), total)
}

func TestEncodeMultiStoreDistribution(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 6*1024)
	storeA, storeB := t.TempDir(), t.TempDir()

	keyPath := encodeInto(t, sourcePath, cfg, nil, storeA, storeB)

	countFragments := func(dir string) int {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		n := 0
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), fragmentstore.Extension) {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 3, countFragments(storeA))
	assert.Equal(t, 3, countFragments(storeB))

	// The key file lives in the primary store; fragments in the secondary
	// store are found through the directories recorded in the manifest.
	report, err := decodeKey(t, keyPath, "", "", cfg)
	require.NoError(t, err)
	assert.True(t, report.Intact())
	requireSameContent(t, sourcePath, report.OutputPath)
}

func TestEncodeRegistersSession(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 3000)
	storeDir := t.TempDir()
	registry := &mockRegistry{}

	encodeInto(t, sourcePath, cfg, registry, storeDir)

	require.Len(t, registry.records, 1)
	record := registry.records[0]
	assert.Equal(t, "source.bin", record.FileName)
	assert.Equal(t, "source.bin"+keyfile.Extension, record.KeyFileName)
	assert.Equal(t, 3, record.Fragments)
	assert.Equal(t, int64(3000), record.TotalBytes)
	assert.Len(t, record.SHA256, 64)
	assert.NotEmpty(t, record.EncodedAt)
}

func TestEncodeZeroByteFile(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 0)
	storeDir := t.TempDir()

	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)
	kf := parseKeyFile(t, keyPath)
	assert.Empty(t, kf.Manifest(keyfile.SchemeBase))

	report, err := decodeKey(t, keyPath, "", "", cfg)
	require.NoError(t, err)
	assert.True(t, report.Intact())
	assert.Zero(t, report.Fragments)
	requireSameContent(t, sourcePath, report.OutputPath)
}

func TestDecodeExplicitOutputAndFragmentDir(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 2500)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	outputPath := filepath.Join(t.TempDir(), "restored.bin")
	report, err := decodeKey(t, keyPath, outputPath, storeDir, cfg)
	require.NoError(t, err)

	assert.Equal(t, outputPath, report.OutputPath)
	assert.True(t, report.Intact())
	requireSameContent(t, sourcePath, outputPath)
}

func TestDecodeSurvivesRelocatedFragments(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 3000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	// Move the whole store, key file included. The manifest still points at
	// the old directory, so resolution must go through the new one.
	movedDir := filepath.Join(t.TempDir(), "moved")
	require.NoError(t, os.Rename(storeDir, movedDir))
	movedKey := filepath.Join(movedDir, filepath.Base(keyPath))

	report, err := decodeKey(t, movedKey, "", movedDir, cfg)
	require.NoError(t, err)
	assert.True(t, report.Intact())
	requireSameContent(t, sourcePath, report.OutputPath)
}

func corruptFragment(t *testing.T, keyPath string) int {
	t.Helper()
	kf := parseKeyFile(t, keyPath)
	manifest := kf.Manifest(keyfile.SchemeBase)
	require.NotEmpty(t, manifest)

	target := manifest[0]
	path := filepath.Join(target.Directory, target.Name)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))
	return target.Sequence
}

func TestDecodeReportsCorruptionWithoutFailing(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 5000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	seq := corruptFragment(t, keyPath)

	report, err := decodeKey(t, keyPath, "", "", cfg)
	require.NoError(t, err)

	assert.False(t, report.Intact())
	assert.Equal(t, []int{seq}, report.MismatchedFragments)
	// The byte accounting still balances; only the content diverges.
	assert.Equal(t, report.ExpectedBytes, report.ActualBytes)
	for _, c := range report.Digests {
		assert.False(t, c.Match(), "%s should differ", c.Algorithm)
	}
}

func TestDecodeStrictAbortsOnCorruption(t *testing.T) {
	cfg := testConfig()
	cfg.Strict = true
	sourcePath := writeSource(t, 5000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	corruptFragment(t, keyPath)

	_, err := decodeKey(t, keyPath, "", "", cfg)
	assert.ErrorIs(t, err, jerrors.ErrDigestMismatch)
}

func TestDecodeMissingFragmentFails(t *testing.T) {
	cfg := testConfig()
	sourcePath := writeSource(t, 5000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	kf := parseKeyFile(t, keyPath)
	target := kf.Manifest(keyfile.SchemeBase)[0]
	require.NoError(t, os.Remove(filepath.Join(target.Directory, target.Name)))

	_, err := decodeKey(t, keyPath, "", "", cfg)
	assert.ErrorIs(t, err, jerrors.ErrFragmentNotFound)
}

func TestParityRecoversDeletedFragment(t *testing.T) {
	cfg := testConfig()
	cfg.ParityShards = 2
	sourcePath := writeSource(t, 5000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	kf := parseKeyFile(t, keyPath)
	assert.Equal(t, 2, kf.Header.ParityShards)
	require.Len(t, kf.Manifest(keyfile.SchemeParity), 2)

	target := kf.Manifest(keyfile.SchemeBase)[2]
	require.NoError(t, os.Remove(filepath.Join(target.Directory, target.Name)))

	report, err := decodeKey(t, keyPath, "", "", cfg)
	require.NoError(t, err)

	assert.True(t, report.Intact())
	assert.Equal(t, []int{target.Sequence}, report.RecoveredFragments)
	requireSameContent(t, sourcePath, report.OutputPath)

	audit, err := os.ReadFile(report.AuditPath)
	require.NoError(t, err)
	assert.Contains(t, string(audit), "recovered from parity")
}

func TestParityRecoversCorruptFragment(t *testing.T) {
	cfg := testConfig()
	cfg.ParityShards = 2
	sourcePath := writeSource(t, 5000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	seq := corruptFragment(t, keyPath)

	report, err := decodeKey(t, keyPath, "", "", cfg)
	require.NoError(t, err)

	assert.True(t, report.Intact())
	assert.Empty(t, report.MismatchedFragments)
	assert.Equal(t, []int{seq}, report.RecoveredFragments)
	requireSameContent(t, sourcePath, report.OutputPath)
}

func TestParityCannotCoverTooManyLosses(t *testing.T) {
	cfg := testConfig()
	cfg.ParityShards = 1
	sourcePath := writeSource(t, 5000)
	storeDir := t.TempDir()
	keyPath := encodeInto(t, sourcePath, cfg, nil, storeDir)

	kf := parseKeyFile(t, keyPath)
	for _, e := range kf.Manifest(keyfile.SchemeBase)[:2] {
		require.NoError(t, os.Remove(filepath.Join(e.Directory, e.Name)))
	}

	_, err := decodeKey(t, keyPath, "", "", cfg)
	assert.Error(t, err)
}

func TestRepeatedEncodesDoNotCollide(t *testing.T) {
	cfg := testConfig()
	cfg.FilenameLength = 4
	sourcePath := writeSource(t, 2048)
	storeDir := t.TempDir()

	encodeInto(t, sourcePath, cfg, nil, storeDir)
	encodeInto(t, sourcePath, cfg, nil, storeDir)

	entries, err := os.ReadDir(storeDir)
	require.NoError(t, err)
	fragments := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), fragmentstore.Extension) {
			fragments++
		}
	}
	assert.Equal(t, 4, fragments)
}

func TestEncodeWithoutStores(t *testing.T) {
	placer := placement.NewRoundRobinPlacer()
	_, err := NewEncodeService(placer, nil).Encode(context.Background(), writeSource(t, 100), testConfig())
	assert.Error(t, err)
}

func TestEstimateMinimumBlockSize(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int64
	}{
		{name: "large file", size: 5000, want: 100},
		{name: "not evenly divisible", size: 5049, want: 100},
		{name: "small file", size: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EstimateMinimumBlockSize(writeSource(t, tt.size))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateMissingFile(t *testing.T) {
	_, err := EstimateMinimumBlockSize(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
