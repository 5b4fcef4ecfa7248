// Package keyfile encodes and decodes the key file: the sole durable link
// between the fragments and the original file.
//
// The key file is line-oriented UTF-8 text. Header lines are
// "#field>>value"; body lines are
// "scheme>>sequence>>length>>directory>>name>>digest". The multi-character
// delimiter ">>" must not appear in field names, paths or digest values;
// this is a documented constraint of the format, not checked at runtime.
package keyfile

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mvtan/jigsaw/internal/domain"
	jerrors "github.com/mvtan/jigsaw/internal/errors"
)

const (
	// Delimiter separates fields on every header and body line.
	Delimiter = ">>"
	// Extension is appended to the source file name to form the key file name.
	Extension = ".jgk"
	// AuditExtension is appended to the output file name to form the decode
	// audit artifact name.
	AuditExtension = ".jkd"

	// SchemeBase tags manifest lines of the plain slice-and-store scheme.
	SchemeBase = "AA"
	// SchemeParity tags the sidecar manifest of Reed-Solomon parity
	// fragments. Parity lines never contribute bytes to the output file.
	SchemeParity = "PP"
)

// Header field names as written to the key file.
const (
	FieldVersion      = "version"
	FieldInputDir     = "inputdir"
	FieldInputFile    = "infile"
	FieldHashLength   = "hashlength"
	FieldParityShards = "parityshards"
)

var knownSchemes = map[string]bool{
	SchemeBase:   true,
	SchemeParity: true,
}

// Header carries the session metadata recorded before any fragment line.
type Header struct {
	Version    string
	InputDir   string
	InputFile  string
	HashLength int
	Digests    domain.DigestSet
	// ParityShards is zero when the key file carries no parity manifest.
	ParityShards int
}

// Entry is one parsed or to-be-written fragment manifest line.
type Entry struct {
	Sequence  int
	Length    int64
	Directory string
	Name      string
	Digest    string
}

// KeyFile is a fully parsed key file.
type KeyFile struct {
	Header Header
	// Fields is the raw header key-to-value mapping, including fields this
	// implementation does not interpret.
	Fields map[string]string
	// Schemes maps scheme code to sequence number to entry.
	Schemes map[string]map[int]Entry
}

// Manifest returns the entries of one scheme sorted by ascending sequence
// number. This sort is the authoritative ordering; body-line write order is
// not trusted. A scheme with no entries yields an empty slice.
func (k *KeyFile) Manifest(scheme string) []Entry {
	byseq := k.Schemes[scheme]
	entries := make([]Entry, 0, len(byseq))
	for _, e := range byseq {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
	return entries
}

// FormatEntry renders one body line without the trailing newline. It is also
// used for verbose per-block logging during encoding.
func FormatEntry(scheme string, e Entry) string {
	return strings.Join([]string{
		scheme,
		strconv.Itoa(e.Sequence),
		strconv.FormatInt(e.Length, 10),
		e.Directory,
		e.Name,
		e.Digest,
	}, Delimiter)
}

// Writer streams a key file: header first, then body lines in slicing order.
type Writer struct {
	wc io.WriteCloser
	bw *bufio.Writer
}

// NewWriter wraps an already opened key-file handle.
func NewWriter(wc io.WriteCloser) *Writer {
	return &Writer{wc: wc, bw: bufio.NewWriter(wc)}
}

// WriteHeader writes one "#field>>value" line per header field and flushes
// immediately, so the header is durable before the first fragment is cut.
func (w *Writer) WriteHeader(h Header) error {
	type field struct{ name, value string }
	fields := []field{
		{FieldVersion, h.Version},
		{FieldInputDir, h.InputDir},
		{FieldInputFile, h.InputFile},
		{FieldHashLength, strconv.Itoa(h.HashLength)},
	}
	for _, d := range h.Digests.Named() {
		fields = append(fields, field{d.Algorithm, d.Value})
	}
	if h.ParityShards > 0 {
		fields = append(fields, field{FieldParityShards, strconv.Itoa(h.ParityShards)})
	}

	for _, f := range fields {
		if _, err := fmt.Fprintf(w.bw, "#%s%s%s\n", f.name, Delimiter, f.value); err != nil {
			return fmt.Errorf("failed to write key file header: %w", err)
		}
	}
	return w.bw.Flush()
}

// WriteEntry appends one manifest line.
func (w *Writer) WriteEntry(scheme string, e Entry) error {
	if _, err := fmt.Fprintln(w.bw, FormatEntry(scheme, e)); err != nil {
		return fmt.Errorf("failed to write key file entry: %w", err)
	}
	return nil
}

// Close flushes buffered lines and closes the underlying handle.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.wc.Close()
		return err
	}
	return w.wc.Close()
}

// Parse reads an entire key file. Blank lines are ignored; lines prefixed
// with '#' populate the header mapping and all other lines are manifest
// entries. A missing required header field, a body line with the wrong field
// count or an unknown scheme code is a format error.
func Parse(r io.Reader) (*KeyFile, error) {
	kf := &KeyFile{
		Fields:  make(map[string]string),
		Schemes: make(map[string]map[int]Entry),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseHeaderLine(kf, strings.TrimPrefix(line, "#"))
			continue
		}
		if err := parseBodyLine(kf, lineNo, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if err := populateHeader(kf); err != nil {
		return nil, err
	}
	return kf, nil
}

func parseHeaderLine(kf *KeyFile, line string) {
	parts := strings.SplitN(line, Delimiter, 2)
	if len(parts) != 2 {
		// Header lines without a delimiter carry no value; keep the key so
		// the raw mapping stays faithful to the file.
		kf.Fields[strings.TrimSpace(line)] = ""
		return
	}
	kf.Fields[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
}

func parseBodyLine(kf *KeyFile, lineNo int, line string) error {
	fields := strings.Split(line, Delimiter)
	if len(fields) != 6 {
		return jerrors.MalformedLineError(lineNo, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	scheme := fields[0]
	if !knownSchemes[scheme] {
		return jerrors.UnknownSchemeError(scheme)
	}

	seq, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("key file line %d: bad sequence number %q: %w", lineNo, fields[1], err)
	}
	length, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("key file line %d: bad block length %q: %w", lineNo, fields[2], err)
	}

	if kf.Schemes[scheme] == nil {
		kf.Schemes[scheme] = make(map[int]Entry)
	}
	kf.Schemes[scheme][seq] = Entry{
		Sequence:  seq,
		Length:    length,
		Directory: fields[3],
		Name:      fields[4],
		Digest:    fields[5],
	}
	return nil
}

func populateHeader(kf *KeyFile) error {
	required := func(field string) (string, error) {
		v, ok := kf.Fields[field]
		if !ok {
			return "", jerrors.MissingHeaderFieldError(field)
		}
		return v, nil
	}

	var err error
	h := &kf.Header
	if h.Version, err = required(FieldVersion); err != nil {
		return err
	}
	if h.InputDir, err = required(FieldInputDir); err != nil {
		return err
	}
	if h.InputFile, err = required(FieldInputFile); err != nil {
		return err
	}

	rawLen, err := required(FieldHashLength)
	if err != nil {
		return err
	}
	if h.HashLength, err = strconv.Atoi(rawLen); err != nil {
		return fmt.Errorf("key file header: bad %s value %q: %w", FieldHashLength, rawLen, err)
	}

	digests := map[string]*string{
		"md5":    &h.Digests.MD5,
		"sha1":   &h.Digests.SHA1,
		"sha224": &h.Digests.SHA224,
		"sha256": &h.Digests.SHA256,
		"sha384": &h.Digests.SHA384,
		"sha512": &h.Digests.SHA512,
	}
	for _, name := range []string{"md5", "sha1", "sha224", "sha256", "sha384", "sha512"} {
		v, err := required(name)
		if err != nil {
			return err
		}
		*digests[name] = v
	}

	if raw, ok := kf.Fields[FieldParityShards]; ok {
		if h.ParityShards, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("key file header: bad %s value %q: %w", FieldParityShards, raw, err)
		}
	}
	return nil
}
