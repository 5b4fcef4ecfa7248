package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mvtan/jigsaw/internal/digest"
	"github.com/mvtan/jigsaw/internal/domain"
	jerrors "github.com/mvtan/jigsaw/internal/errors"
	"github.com/mvtan/jigsaw/internal/keyfile"
	"github.com/mvtan/jigsaw/internal/repository/fragmentstore"
)

// DecodeService runs the decode pipeline: parse the key file, reassemble
// the fragments in manifest order and verify whole-file fidelity.
type DecodeService struct {
	factory *fragmentstore.Factory
}

// NewDecodeService creates a new DecodeService.
func NewDecodeService(factory *fragmentstore.Factory) *DecodeService {
	return &DecodeService{factory: factory}
}

// decodeRun carries the resolved state of one decode invocation.
type decodeRun struct {
	kf *keyfile.KeyFile
	// fragmentDir is the resolved primary fragment location. Fragments are
	// looked up there first; when the run was not given an explicit
	// fragment dir, a miss falls back to the per-entry directory recorded
	// in the manifest (multi-store encodes).
	fragmentDir string
	overridden  bool
	outputPath  string
	cfg         domain.SessionConfig
}

// Decode reconstructs the original file from the key file at keyFilePath and
// returns the fidelity report. outputPath and fragmentDir may be empty; they
// then default to the original file name from the header and the key file's
// own directory. Fidelity mismatches are reported, not fatal, unless
// cfg.Strict is set. On failure the partially written output file is left on
// disk.
func (s *DecodeService) Decode(ctx context.Context, keyFilePath, outputPath, fragmentDir string, cfg domain.SessionConfig) (domain.FidelityReport, error) {
	var report domain.FidelityReport

	log.Infof("Decoding with key file %s", keyFilePath)
	kf, keyDir, err := s.parseKeyFile(ctx, keyFilePath)
	if err != nil {
		return report, err
	}

	run := decodeRun{kf: kf, cfg: cfg, overridden: fragmentDir != ""}
	run.fragmentDir = fragmentDir
	if run.fragmentDir == "" {
		run.fragmentDir = keyDir
	}
	run.outputPath = outputPath
	if run.outputPath == "" {
		base := filepath.Base(filepath.ToSlash(kf.Header.InputFile))
		if isRemote(run.fragmentDir) {
			run.outputPath = base
		} else {
			run.outputPath = filepath.Join(run.fragmentDir, base)
		}
	}
	if run.outputPath, err = filepath.Abs(run.outputPath); err != nil {
		return report, fmt.Errorf("failed to resolve output path: %w", err)
	}
	report.OutputPath = run.outputPath
	report.AuditPath = run.outputPath + keyfile.AuditExtension
	log.Infof("Reassembling fragments from %s into %s", run.fragmentDir, run.outputPath)

	out, err := os.Create(run.outputPath)
	if err != nil {
		return report, fmt.Errorf("failed to create output file: %w", err)
	}
	audit, err := newAuditLog(report.AuditPath)
	if err != nil {
		out.Close()
		return report, err
	}

	err = s.reconstruct(ctx, run, out, audit, &report)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	if err != nil {
		audit.Close()
		return report, err
	}

	if err := s.verify(run, &report); err != nil {
		audit.Close()
		return report, err
	}
	audit.Summary(report)
	if err := audit.Close(); err != nil {
		return report, fmt.Errorf("failed to close audit file: %w", err)
	}

	log.Infof("Decoding completed: %d fragments, %d of %d bytes",
		report.Fragments, report.ActualBytes, report.ExpectedBytes)
	return report, nil
}

// parseKeyFile reads and parses the key file, returning it together with the
// directory (or remote location) holding it.
func (s *DecodeService) parseKeyFile(ctx context.Context, keyFilePath string) (*keyfile.KeyFile, string, error) {
	var rc io.ReadCloser
	var keyDir string

	if isRemote(keyFilePath) {
		i := strings.LastIndex(keyFilePath, "/")
		location, name := keyFilePath[:i], keyFilePath[i+1:]
		repo, err := s.factory.Repository(ctx, location)
		if err != nil {
			return nil, "", err
		}
		if rc, err = repo.Read(ctx, name, true); err != nil {
			return nil, "", fmt.Errorf("failed to read key file: %w", err)
		}
		keyDir = location
	} else {
		abs, err := filepath.Abs(keyFilePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve key file path: %w", err)
		}
		if rc, err = os.Open(abs); err != nil {
			return nil, "", fmt.Errorf("failed to open key file: %w", err)
		}
		keyDir = filepath.Dir(abs)
	}
	defer rc.Close()

	kf, err := keyfile.Parse(rc)
	if err != nil {
		return nil, "", err
	}
	return kf, keyDir, nil
}

// reconstruct reads every base-scheme fragment in ascending sequence order
// and appends its bytes to the output file. With a parity manifest present,
// unreadable fragments are rebuilt instead of aborting the run.
func (s *DecodeService) reconstruct(ctx context.Context, run decodeRun, out *os.File, audit *auditLog, report *domain.FidelityReport) error {
	entries := run.kf.Manifest(keyfile.SchemeBase)

	var bar *progressbar.ProgressBar
	if !run.cfg.Quiet && len(entries) > 0 {
		var total int64
		for _, e := range entries {
			total += e.Length
		}
		bar = progressbar.DefaultBytes(total, "assembling")
	}

	process := func(e keyfile.Entry, data []byte, path string) error {
		report.Fragments++
		report.ExpectedBytes += e.Length
		report.ActualBytes += int64(len(data))

		recomputed := digest.Truncated(data, run.kf.Header.HashLength)
		audit.Fragment(e.Sequence, path, e.Length, int64(len(data)), e.Digest, recomputed)
		if recomputed != e.Digest {
			report.MismatchedFragments = append(report.MismatchedFragments, e.Sequence)
			log.Warnf("Fragment %d digest mismatch: manifest %s, recomputed %s", e.Sequence, e.Digest, recomputed)
			if run.cfg.Strict {
				return fmt.Errorf("fragment %d: %w", e.Sequence, jerrors.ErrDigestMismatch)
			}
		}

		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if bar != nil {
			bar.Add(len(data))
		}
		return nil
	}

	if run.kf.Header.ParityShards > 0 {
		blocks, paths, recovered, err := s.readWithRecovery(ctx, run, entries)
		if err != nil {
			return err
		}
		report.RecoveredFragments = recovered
		for _, seq := range recovered {
			audit.Recovered(seq)
		}
		for i, e := range entries {
			if err := process(e, blocks[i], paths[i]); err != nil {
				return err
			}
		}
		return nil
	}

	for _, e := range entries {
		data, path, err := s.readFragment(ctx, run, e)
		if err != nil {
			return err
		}
		if err := process(e, data, path); err != nil {
			return err
		}
	}
	return nil
}

// readFragment reads one fragment's full contents. The primary fragment
// location is tried first; without an explicit override, a failure there
// falls back to the directory recorded in the manifest entry.
func (s *DecodeService) readFragment(ctx context.Context, run decodeRun, e keyfile.Entry) ([]byte, string, error) {
	repo, err := s.factory.Repository(ctx, run.fragmentDir)
	if err != nil {
		return nil, "", err
	}

	data, err := readAll(ctx, repo, e.Name)
	if err != nil && !run.overridden && e.Directory != "" && e.Directory != run.fragmentDir {
		if fallback, ferr := s.factory.Repository(ctx, e.Directory); ferr == nil {
			if fdata, frerr := readAll(ctx, fallback, e.Name); frerr == nil {
				return fdata, joinLocation(fallback, e.Name), nil
			}
		}
	}
	if err != nil {
		return nil, joinLocation(repo, e.Name), fmt.Errorf("fragment %d: %w", e.Sequence, err)
	}
	return data, joinLocation(repo, e.Name), nil
}

// readWithRecovery loads all data fragments, tolerating unreadable or
// digest-mismatched ones, and rebuilds the gaps from the parity manifest.
func (s *DecodeService) readWithRecovery(ctx context.Context, run decodeRun, entries []keyfile.Entry) ([][]byte, []string, []int, error) {
	blocks := make([][]byte, len(entries))
	lengths := make([]int64, len(entries))
	paths := make([]string, len(entries))

	missing := 0
	for i, e := range entries {
		lengths[i] = e.Length
		data, path, err := s.readFragment(ctx, run, e)
		paths[i] = path
		if err != nil {
			log.Warnf("Fragment %d unreadable, queued for parity recovery: %v", e.Sequence, err)
			missing++
			continue
		}
		if digest.Truncated(data, run.kf.Header.HashLength) != e.Digest {
			log.Warnf("Fragment %d digest mismatch, queued for parity recovery", e.Sequence)
			missing++
			continue
		}
		blocks[i] = data
	}
	if missing == 0 {
		return blocks, paths, nil, nil
	}

	parityEntries := run.kf.Manifest(keyfile.SchemeParity)
	if len(parityEntries) == 0 {
		return nil, nil, nil, fmt.Errorf("%d fragments unreadable and key file has no parity manifest", missing)
	}

	parity := make([][]byte, len(parityEntries))
	var shardSize int64
	for i, pe := range parityEntries {
		shardSize = pe.Length
		data, _, err := s.readFragment(ctx, run, pe)
		if err != nil {
			log.Warnf("Parity fragment %d unreadable: %v", pe.Sequence, err)
			continue
		}
		parity[i] = data
	}

	var recovered []int
	for i, e := range entries {
		if blocks[i] == nil {
			recovered = append(recovered, e.Sequence)
		}
	}
	log.Infof("Recovering %d fragments from %d parity shards", len(recovered), len(parityEntries))
	if err := recoverBlocks(blocks, lengths, parity, shardSize); err != nil {
		return nil, nil, nil, err
	}
	return blocks, paths, recovered, nil
}

// verify recomputes the six whole-file digests of the reconstructed file and
// fills in the expected-vs-actual comparisons.
func (s *DecodeService) verify(run decodeRun, report *domain.FidelityReport) error {
	actual, err := digest.WholeFile(run.outputPath)
	if err != nil {
		return err
	}

	expected := run.kf.Header.Digests.Named()
	got := actual.Named()
	for i := range expected {
		c := domain.DigestComparison{
			Algorithm: expected[i].Algorithm,
			Expected:  expected[i].Value,
			Actual:    got[i].Value,
		}
		report.Digests = append(report.Digests, c)
		if c.Match() {
			log.Debugf("%s digest matches: %s", c.Algorithm, c.Actual)
		} else {
			log.Warnf("%s digest mismatch: reconstructed %s, original %s", c.Algorithm, c.Actual, c.Expected)
		}
	}
	return nil
}

func readAll(ctx context.Context, repo fragmentstore.FragmentRepository, name string) ([]byte, error) {
	rc, err := repo.Read(ctx, name, true)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isRemote(location string) bool {
	return strings.Contains(location, "://")
}
