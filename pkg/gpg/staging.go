package gpg

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// private key material inside a gpg home directory
var secretPaths = []string{"private-keys-v1.d", "secring.gpg"}

var removeAll = os.RemoveAll

// StagingDir is an owner-only scratch gpg home. Close erases it.
type StagingDir struct {
	path   string
	closed bool
}

// NewStagingDir creates a fresh 0700 directory under parent (os.TempDir
// when empty). Callers must defer Close immediately.
func NewStagingDir(parent string) (*StagingDir, error) {
	path, err := os.MkdirTemp(parent, "sdw-gpg-")
	if err != nil {
		return nil, errors.Wrap(err, "create staging directory")
	}
	if err := os.Chmod(path, 0700); err != nil {
		os.RemoveAll(path)
		return nil, errors.Wrap(err, "restrict staging directory")
	}
	log.Debugf("created staging directory %s", path)
	return &StagingDir{path: path}, nil
}

// Path returns the directory to pass as --homedir
func (s *StagingDir) Path() string { return s.path }

// Close overwrites private key material best-effort and then removes the
// whole tree. Calling it again after a failed removal retries it.
func (s *StagingDir) Close() error {
	if s.closed {
		return nil
	}

	for _, name := range secretPaths {
		target := filepath.Join(s.path, name)
		filepath.Walk(target, func(path string, info os.FileInfo, err error) error {
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
			if err := overwrite(path, info.Size()); err != nil {
				log.Debugf("could not overwrite %s, removing only: %v", path, err)
			}
			return nil
		})
	}

	if err := removeAll(s.path); err != nil {
		return errors.Wrapf(err, "remove staging directory %s", s.path)
	}
	s.closed = true
	log.Debugf("removed staging directory %s", s.path)
	return nil
}

// overwrite replaces size bytes of path with random data and syncs
func overwrite(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.CopyN(f, rand.Reader, size); err != nil {
		return err
	}
	return f.Sync()
}
