package qrexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBinary is the dom0 tool used to run commands inside a qube
const DefaultBinary = "qvm-run"

// Bridge runs a command inside a named domain and hands back its stdout
type Bridge interface {
	Run(ctx context.Context, domain, command string, sink io.Writer) ([]byte, error)
}

// RemoteExecutionError is returned when the bridge process exits non-zero
type RemoteExecutionError struct {
	Domain   string
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RemoteExecutionError) Error() string {
	msg := fmt.Sprintf("%s in %s failed (exit status %d)", e.Command, e.Domain, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Cause lets errors.Cause reach the underlying exec failure
func (e *RemoteExecutionError) Cause() error { return e.Err }

func (e *RemoteExecutionError) Unwrap() error { return e.Err }

// ExitCode returns the bridge exit status carried by err, or -1 when err
// is not a remote execution failure. A nil error is exit status 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var rerr *RemoteExecutionError
	if errors.As(err, &rerr) {
		return rerr.ExitCode
	}
	return -1
}

// QubesBridge invokes `qvm-run --pass-io <domain> <command>`
type QubesBridge struct {
	Binary string
	Stdin  io.Reader
}

// NewQubesBridge returns a bridge using binary, or qvm-run when empty
func NewQubesBridge(binary string) *QubesBridge {
	if binary == "" {
		binary = DefaultBinary
	}
	return &QubesBridge{Binary: binary}
}

// Run executes command inside domain. When sink is non-nil the output is
// streamed into it and the returned slice is nil.
func (b *QubesBridge) Run(ctx context.Context, domain, command string, sink io.Writer) ([]byte, error) {
	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
	)

	cmd := exec.CommandContext(ctx, b.Binary, "--pass-io", domain, command)
	cmd.Stdin = b.Stdin
	cmd.Stderr = &stderr
	if sink != nil {
		cmd.Stdout = sink
	} else {
		cmd.Stdout = &stdout
	}

	log.Debugf("running [%s] in %s", command, domain)
	if err := cmd.Run(); err != nil {
		return nil, &RemoteExecutionError{
			Domain:   domain,
			Command:  command,
			ExitCode: exitStatus(err),
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	if sink != nil {
		return nil, nil
	}
	return stdout.Bytes(), nil
}

func exitStatus(err error) int {
	if exiterr, ok := err.(*exec.ExitError); ok {
		if status, ok := exiterr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}
	return -1
}

// Quote wraps s in single quotes for the remote shell
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
