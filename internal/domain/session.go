package domain

// SlicerMode selects how the source file is cut into blocks.
type SlicerMode string

const (
	// SlicerEven produces blocks of exactly the configured size, with a
	// shorter final remainder block.
	SlicerEven SlicerMode = "even"
	// SlicerUneven draws each block size uniformly from
	// [blockSize, 2*blockSize).
	SlicerUneven SlicerMode = "uneven"
)

// VersionOne is the format tag of the base fragmentation scheme.
const VersionOne = "JigsawFileONE"

// SessionConfig holds the immutable per-run settings for an encode or
// decode operation. It is built once from caller input and never mutated
// mid-run.
type SessionConfig struct {
	Slicer         SlicerMode
	BlockSize      int64
	FilenameLength int
	HashLength     int
	Version        string
	Verbose        int
	// ParityShards is the number of Reed-Solomon parity fragments to
	// generate alongside the data fragments. Zero disables parity.
	ParityShards int
	// Strict aborts a decode on the first per-fragment digest mismatch
	// instead of only recording it in the fidelity report.
	Strict bool
	// Quiet suppresses progress bars.
	Quiet bool
}

// DefaultSessionConfig mirrors the historical command-line defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Slicer:         SlicerEven,
		BlockSize:      32768,
		FilenameLength: 30,
		HashLength:     16,
		Version:        VersionOne,
		Verbose:        2,
	}
}

// SessionRecord is the optional DynamoDB bookkeeping entry for one encode
// run. The key file remains the sole reconstruction authority; this record
// only answers "what was encoded into this directory".
type SessionRecord struct {
	Directory   string `json:"directory" dynamodbav:"directory"` // Partition key
	FileName    string `json:"file_name" dynamodbav:"file_name"` // Sort key
	KeyFileName string `json:"key_file_name" dynamodbav:"key_file_name"`
	Fragments   int    `json:"fragments" dynamodbav:"fragments"`
	TotalBytes  int64  `json:"total_bytes" dynamodbav:"total_bytes"`
	SHA256      string `json:"sha256" dynamodbav:"sha256"`
	EncodedAt   string `json:"encoded_at" dynamodbav:"encoded_at"`
}
