package domain

// Fragment describes one persisted piece of the source file.
//
// Within one encode run, fragment names are pairwise distinct and sequence
// numbers are contiguous from 0 in slicing order.
type Fragment struct {
	Sequence  int
	Length    int64
	Directory string
	Name      string
	// Digest is the truncated content digest used for post-hoc fidelity
	// reporting. It never gates reconstruction in the base scheme.
	Digest string
}

// DigestSet holds the six whole-file digests, hex-encoded, in the fixed
// order of the key-file header.
type DigestSet struct {
	MD5    string
	SHA1   string
	SHA224 string
	SHA256 string
	SHA384 string
	SHA512 string
}

// NamedDigest pairs a digest value with its algorithm name as written to
// the key-file header.
type NamedDigest struct {
	Algorithm string
	Value     string
}

// Named returns the digests in header order.
func (d DigestSet) Named() []NamedDigest {
	return []NamedDigest{
		{"md5", d.MD5},
		{"sha1", d.SHA1},
		{"sha224", d.SHA224},
		{"sha256", d.SHA256},
		{"sha384", d.SHA384},
		{"sha512", d.SHA512},
	}
}

// DigestComparison is one expected-vs-actual pair in a fidelity report.
type DigestComparison struct {
	Algorithm string
	Expected  string
	Actual    string
}

// Match reports whether the reconstructed digest equals the recorded one.
func (c DigestComparison) Match() bool {
	return c.Expected == c.Actual
}

// FidelityReport is the decode-time accounting of the reconstruction. It is
// derived and non-persistent; the same content is also written to the audit
// artifact next to the output file.
type FidelityReport struct {
	OutputPath    string
	AuditPath     string
	Fragments     int
	ExpectedBytes int64
	ActualBytes   int64
	// MismatchedFragments lists the sequence numbers whose recomputed
	// truncated digest differed from the manifest value.
	MismatchedFragments []int
	// RecoveredFragments lists the sequence numbers rebuilt from parity.
	RecoveredFragments []int
	Digests            []DigestComparison
}

// Intact reports whether every whole-file digest matched, every fragment
// digest matched and the byte accounting balanced.
func (r FidelityReport) Intact() bool {
	if r.ExpectedBytes != r.ActualBytes || len(r.MismatchedFragments) > 0 {
		return false
	}
	for _, c := range r.Digests {
		if !c.Match() {
			return false
		}
	}
	return true
}
