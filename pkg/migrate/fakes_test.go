package migrate

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/threecommaio/sdwmigrate/pkg/qrexec"
)

const (
	fprA = "0123456789ABCDEF0123456789ABCDEF01234567"
	fprB = "89ABCDEF0123456789ABCDEF0123456789ABCDEF"
	fprC = "FEDCBA9876543210FEDCBA9876543210FEDCBA98"
)

func colons(fprs ...string) string {
	var b strings.Builder
	for _, fp := range fprs {
		b.WriteString("sec:u:4096:1:0123456789ABCDEF:1700000000:::u:::scESC:::+:::23::0:\n")
		b.WriteString("fpr:::::::::" + fp + ":\n")
	}
	return b.String()
}

type reply struct {
	out string
	err error
}

// fakeBridge answers commands by prefix
type fakeBridge struct {
	replies map[string]reply
	calls   []string
}

func (f *fakeBridge) Run(ctx context.Context, domain, command string, sink io.Writer) ([]byte, error) {
	f.calls = append(f.calls, domain+": "+command)
	for prefix, r := range f.replies {
		if !strings.HasPrefix(command, prefix) {
			continue
		}
		if sink != nil {
			io.WriteString(sink, r.out)
			return nil, r.err
		}
		if r.err != nil {
			return nil, r.err
		}
		return []byte(r.out), nil
	}
	return nil, &qrexec.RemoteExecutionError{Domain: domain, Command: command, ExitCode: 1, Err: errors.New("unexpected command")}
}

// fakeKeyring checks the staging directory is private while in use
type fakeKeyring struct {
	t         *testing.T
	listing   string
	importErr error
	imported  string
	homes     []string
}

func (k *fakeKeyring) Import(ctx context.Context, homedir string, armored io.Reader) error {
	k.homes = append(k.homes, homedir)
	info, err := os.Stat(homedir)
	if err != nil {
		k.t.Errorf("staging directory missing during import: %v", err)
	} else if info.Mode().Perm() != 0700 {
		k.t.Errorf("staging directory mode = %v, want 0700", info.Mode().Perm())
	}
	b, _ := io.ReadAll(armored)
	k.imported = string(b)
	return k.importErr
}

func (k *fakeKeyring) ListSecretKeys(ctx context.Context, homedir string) ([]byte, error) {
	return []byte(k.listing), nil
}

type fixedCapacity struct {
	kb  int64
	err error
}

func (c fixedCapacity) AvailableKB(ctx context.Context, path string) (int64, error) {
	return c.kb, c.err
}

// stagingEmpty reports whether nothing was left behind in dir
func stagingEmpty(t *testing.T, dir string) bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries) == 0
}
