package migrate

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/threecommaio/sdwmigrate/pkg/gpg"
)

// Dom0 configuration defaults
const (
	DefaultConfigDir  = "/usr/share/securedrop-workstation-dom0-config"
	DefaultQubesDir   = "/etc/qubes"
	ConfigFile        = "config.json"
	SubmissionKeyFile = "sd-journalist.sec"

	fingerprintField = "submission_key_fpr"
)

// Dom0Capture copies the local workstation configuration and qubes
// directory into the migration tree
type Dom0Capture struct {
	Fs        afero.Fs
	ConfigDir string
	Files     []string
	QubesDir  string
}

// Capture copies everything into destDir and returns the reference
// fingerprint from config.json. The target is complete only when every
// copy succeeded and the fingerprint is well-formed.
func (d *Dom0Capture) Capture(destDir string) (StepResult, gpg.Fingerprint) {
	ok := true

	if err := d.Fs.MkdirAll(destDir, 0700); err != nil {
		log.Errorf("failed to create %s: %v", destDir, err)
		return incomplete(TargetDom0, "could not create dom0 directory"), ""
	}

	for _, name := range d.Files {
		src := filepath.Join(d.ConfigDir, name)
		if err := copyFile(d.Fs, src, filepath.Join(destDir, name)); err != nil {
			log.Errorf("failed to copy %s: %v", src, err)
			ok = false
		}
	}

	if d.QubesDir != "" {
		dst := filepath.Join(destDir, filepath.Base(d.QubesDir))
		if err := copyTree(d.Fs, d.QubesDir, dst); err != nil {
			log.Errorf("failed to copy %s: %v", d.QubesDir, err)
			ok = false
		}
	}

	fingerprint, err := ReadReferenceFingerprint(d.Fs, filepath.Join(d.ConfigDir, ConfigFile))
	if err != nil {
		log.Errorf("failed to read submission key fingerprint: %v", err)
		return incomplete(TargetDom0, err.Error()), ""
	}
	log.Infof("submission key fingerprint: %s", fingerprint)

	if !ok {
		return incomplete(TargetDom0, "some dom0 files could not be copied"), fingerprint
	}
	return complete(TargetDom0, "configuration captured"), fingerprint
}

// ReadReferenceFingerprint reads submission_key_fpr from a config.json
func ReadReferenceFingerprint(fs afero.Fs, path string) (gpg.Fingerprint, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}

	raw := v.GetString(fingerprintField)
	fingerprint, ok := gpg.ParseFingerprint(raw)
	if !ok {
		return "", errors.Errorf("%s in %s is not a %d character fingerprint: %q",
			fingerprintField, path, gpg.FingerprintLength, raw)
	}
	return fingerprint, nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	info, err := fs.Stat(src)
	if err != nil {
		return err
	}
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}
	return afero.WriteFile(fs, dst, data, info.Mode().Perm())
}

// copyTree copies regular files and directories; symlinks and other
// special files are skipped
func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return fs.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode().IsRegular():
			return copyFile(fs, path, target)
		default:
			log.Debugf("skipping special file %s", path)
			return nil
		}
	})
}
