package service

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mvtan/jigsaw/internal/domain"
	"github.com/mvtan/jigsaw/internal/keyfile"
)

// auditLog is the decode-time side artifact written next to the output file:
// one line per processed fragment plus a trailing summary block. It is
// informational only; reconstruction correctness never depends on it.
type auditLog struct {
	f  *os.File
	bw *bufio.Writer
}

func newAuditLog(path string) (*auditLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit file %s: %w", path, err)
	}
	return &auditLog{f: f, bw: bufio.NewWriter(f)}, nil
}

// Fragment records one processed fragment.
func (a *auditLog) Fragment(sequence int, path string, expected, actual int64, recorded, recomputed string) {
	line := strings.Join([]string{
		strconv.Itoa(sequence),
		path,
		strconv.FormatInt(expected, 10),
		strconv.FormatInt(actual, 10),
		recorded,
		recomputed,
	}, keyfile.Delimiter)
	fmt.Fprintln(a.bw, line)
}

// Recovered notes a fragment that was rebuilt from parity.
func (a *auditLog) Recovered(sequence int) {
	fmt.Fprintf(a.bw, "fragment %d recovered from parity\n", sequence)
}

// Summary writes the trailing accounting block and the six whole-file
// digest comparisons.
func (a *auditLog) Summary(report domain.FidelityReport) {
	fmt.Fprintf(a.bw, "%d fragments processed\n", report.Fragments)
	fmt.Fprintf(a.bw, "Expected number of bytes: %d\n", report.ExpectedBytes)
	fmt.Fprintf(a.bw, "Actual number of bytes  : %d\n", report.ActualBytes)
	fmt.Fprintln(a.bw, "File hashes (reconstructed file vs original file)")
	for _, c := range report.Digests {
		fmt.Fprintf(a.bw, "%s: %s\n", c.Algorithm, c.Actual)
		fmt.Fprintf(a.bw, "%*s vs %s\n", len(c.Algorithm)+1, "", c.Expected)
	}
}

func (a *auditLog) Close() error {
	if err := a.bw.Flush(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}
