package gpg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultBinary is the key management tool used for local operations
const DefaultBinary = "gpg"

// ImportError is returned when the local key management tool fails
type ImportError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *ImportError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("gpg %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gpg %s: %v", e.Op, e.Err)
}

func (e *ImportError) Cause() error { return e.Err }

func (e *ImportError) Unwrap() error { return e.Err }

// Keyring is a key management tool scoped to a home directory
type Keyring interface {
	Import(ctx context.Context, homedir string, armored io.Reader) error
	ListSecretKeys(ctx context.Context, homedir string) ([]byte, error)
}

// Tool runs the gpg binary with --homedir so nothing touches the
// operator's own keyring
type Tool struct {
	Binary string
}

// NewTool returns a Tool using binary, or gpg when empty
func NewTool(binary string) *Tool {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Tool{Binary: binary}
}

// Import reads armored key material from stdin into homedir
func (t *Tool) Import(ctx context.Context, homedir string, armored io.Reader) error {
	_, err := t.run(ctx, "import", armored, "--homedir", homedir, "--batch", "--import", "-q")
	return err
}

// ListSecretKeys returns `gpg -K --with-colons` for homedir
func (t *Tool) ListSecretKeys(ctx context.Context, homedir string) ([]byte, error) {
	return t.run(ctx, "list-secret-keys", nil, "--homedir", homedir, "-K", "--with-colons")
}

func (t *Tool) run(ctx context.Context, op string, stdin io.Reader, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("running %s %s", t.Binary, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return nil, &ImportError{Op: op, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return stdout.Bytes(), nil
}
