package gpg

import (
	"reflect"
	"strings"
	"testing"
)

const (
	fprA = "0123456789ABCDEF0123456789ABCDEF01234567"
	fprB = "89ABCDEF0123456789ABCDEF0123456789ABCDEF"
)

const listing = `sec:u:4096:1:0123456789ABCDEF:1700000000:::u:::scESC:::+:::23::0:
fpr:::::::::0123456789ABCDEF0123456789ABCDEF01234567:
grp:::::::::AAAABBBBCCCCDDDDEEEEFFFF0000111122223333:
uid:u::::1700000000::HASH::SecureDrop <securedrop@example.org>::::::::::0:
ssb:u:4096:1:89ABCDEF01234567:1700000000::::::e:::+:::23:
fpr:::::::::89abcdef0123456789abcdef0123456789abcdef:
`

func TestExtractFingerprints(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    FingerprintSet
	}{
		{"empty", "", NewFingerprintSet()},
		{"key with subkey", listing, NewFingerprintSet(fprA, fprB)},
		{"duplicates collapse", "fpr:::::::::" + fprA + ":\nfpr:::::::::" + fprA + ":\n", NewFingerprintSet(fprA)},
		{"too few fields", "fpr:::" + fprA + "\n", NewFingerprintSet()},
		{"wrong tag", "fp:::::::::" + fprA + ":\n", NewFingerprintSet()},
		{"tag only as substring", "xfpr:::::::::" + fprA + ":\n", NewFingerprintSet()},
		{"short fingerprint", "fpr:::::::::ABCDEF:\n", NewFingerprintSet()},
		{"not hex", "fpr:::::::::ZZ23456789ABCDEF0123456789ABCDEF01234567:\n", NewFingerprintSet()},
		{"crlf", "fpr:::::::::" + fprA + "\r\n", NewFingerprintSet(fprA)},
		{"binary noise", "\x00\x01fpr\n:::\n", NewFingerprintSet()},
		{"oversized line", "fpr:::::::::" + fprA + ":\nuid:" + strings.Repeat("x", 2<<20) + "\nfpr:::::::::" + fprB + ":\n", NewFingerprintSet(fprA, fprB)},
		{"no trailing newline", "fpr:::::::::" + fprA + ":", NewFingerprintSet(fprA)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFingerprints([]byte(tt.listing))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractFingerprints() = %v, want %v", got.Sorted(), tt.want.Sorted())
			}
		})
	}
}

func TestExtractFingerprints_Idempotent(t *testing.T) {
	first := ExtractFingerprints([]byte(listing))
	second := ExtractFingerprints([]byte(listing))
	if !first.Equal(second) {
		t.Errorf("second extraction = %v, want %v", second.Sorted(), first.Sorted())
	}
}

func TestParseFingerprint(t *testing.T) {
	tests := []struct {
		in     string
		want   Fingerprint
		wantOK bool
	}{
		{fprA, fprA, true},
		{"  89abcdef0123456789abcdef0123456789abcdef\n", fprB, true},
		{fprA[:39], "", false},
		{fprA + "0", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFingerprint(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseFingerprint(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFingerprintSet(t *testing.T) {
	s := NewFingerprintSet(fprB, fprA)
	if !s.Has(fprA) || s.Has("nope") {
		t.Errorf("Has() wrong for %v", s.Sorted())
	}
	if got := s.Sorted(); !reflect.DeepEqual(got, []Fingerprint{fprA, fprB}) {
		t.Errorf("Sorted() = %v", got)
	}
	if s.Equal(NewFingerprintSet(fprA)) {
		t.Error("Equal() true for sets of different size")
	}
	if s.Equal(NewFingerprintSet(fprA, "other")) {
		t.Error("Equal() true for different members")
	}
}
