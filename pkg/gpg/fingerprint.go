package gpg

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"sort"
	"strings"
)

// FingerprintLength is the length of a v4 OpenPGP fingerprint in hex
const FingerprintLength = 40

// Fingerprint is an upper-case hex OpenPGP fingerprint
type Fingerprint string

// ParseFingerprint normalizes s and reports whether it is well-formed
func ParseFingerprint(s string) (Fingerprint, bool) {
	s = strings.TrimSpace(s)
	if len(s) != FingerprintLength {
		return "", false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", false
	}
	return Fingerprint(strings.ToUpper(s)), true
}

// FingerprintSet is an unordered collection of fingerprints
type FingerprintSet map[Fingerprint]struct{}

// NewFingerprintSet builds a set from fps
func NewFingerprintSet(fps ...Fingerprint) FingerprintSet {
	set := make(FingerprintSet, len(fps))
	for _, fp := range fps {
		set[fp] = struct{}{}
	}
	return set
}

func (s FingerprintSet) Has(fp Fingerprint) bool {
	_, ok := s[fp]
	return ok
}

func (s FingerprintSet) Len() int { return len(s) }

// Equal reports whether both sets hold the same fingerprints
func (s FingerprintSet) Equal(other FingerprintSet) bool {
	if len(s) != len(other) {
		return false
	}
	for fp := range s {
		if !other.Has(fp) {
			return false
		}
	}
	return true
}

// Sorted returns the fingerprints in lexical order
func (s FingerprintSet) Sorted() []Fingerprint {
	fps := make([]Fingerprint, 0, len(s))
	for fp := range s {
		fps = append(fps, fp)
	}
	sort.Slice(fps, func(i, j int) bool { return fps[i] < fps[j] })
	return fps
}

// parseRecord returns the fingerprint carried by one --with-colons line,
// if the line is a well-formed fpr record
func parseRecord(line string) (Fingerprint, bool) {
	fields := strings.Split(line, ":")
	if len(fields) < 10 || fields[0] != "fpr" {
		return "", false
	}
	return ParseFingerprint(fields[9])
}

// ExtractFingerprints collects field 10 of every `fpr` record in the
// colon-delimited output of `gpg --with-colons`. Anything else is ignored.
func ExtractFingerprints(listing []byte) FingerprintSet {
	set := NewFingerprintSet()

	// no line length limit
	r := bufio.NewReader(bytes.NewReader(listing))
	for {
		line, err := r.ReadString('\n')
		if fp, ok := parseRecord(strings.TrimRight(line, "\r\n")); ok {
			set[fp] = struct{}{}
		}
		if err != nil {
			return set
		}
	}
}
