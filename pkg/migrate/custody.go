package migrate

import (
	"bytes"
	"context"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/threecommaio/sdwmigrate/pkg/gpg"
	"github.com/threecommaio/sdwmigrate/pkg/qrexec"
)

// ExportFile is the name of the armored secret key export
const ExportFile = "sd_secret_keys_armored.asc"

const (
	listSecretKeysCmd   = "gpg -K --with-colons"
	exportSecretKeysCmd = "gpg -a --export-secret-keys"
)

// CustodyFailure explains why a key custody check did not match
type CustodyFailure int

const (
	CustodyOK CustodyFailure = iota
	// the keys could not be exported at all
	CustodyExportFailed
	// the reference fingerprint is not among the re-imported keys
	CustodyBroken
	// fewer keys came back than were listed remotely
	CustodyPartialImport
)

func (f CustodyFailure) String() string {
	switch f {
	case CustodyOK:
		return "ok"
	case CustodyExportFailed:
		return "Problem: secret keys could not be exported from the key custody VM."
	case CustodyBroken:
		return "Problem: Submission Key Fingerprint in config.json does not match any keys in sd-gpg."
	case CustodyPartialImport:
		return "Some keys may not have been imported successfully. Recheck sd-gpg keyring."
	}
	return "unknown"
}

// VerificationOutcome is the result of one key custody check
type VerificationOutcome struct {
	ExportedCount int
	ImportedCount int
	// keys found by parsing the export in-process, -1 when unparseable
	ArmoredCount int
	Matched      bool
	Failure      CustodyFailure
	ExportPath   string
}

// KeyCustodyVerifier exports secret keys from a domain and re-imports
// them into a throwaway keyring to prove the export is usable
type KeyCustodyVerifier struct {
	Bridge  qrexec.Bridge
	Keyring gpg.Keyring
	Fs      afero.Fs
	// ExportDir receives the armored export
	ExportDir string
	// StagingParent hosts the ephemeral gpg home, os.TempDir when empty
	StagingParent string
}

// Verify runs the export and import round trip against domain
func (v *KeyCustodyVerifier) Verify(ctx context.Context, domain string, reference gpg.Fingerprint) VerificationOutcome {
	outcome := VerificationOutcome{ArmoredCount: -1}

	remote := gpg.NewFingerprintSet()
	if listing, err := v.Bridge.Run(ctx, domain, listSecretKeysCmd, nil); err != nil {
		log.Errorf("failed to check %s keyring: %v", domain, err)
	} else {
		remote = gpg.ExtractFingerprints(listing)
	}
	outcome.ExportedCount = remote.Len()
	log.Infof("found %d key(s) to export from %s", remote.Len(), domain)

	armored, path, err := v.export(ctx, domain)
	outcome.ExportPath = path
	if err != nil {
		log.Errorf("failed to export %s keyring: %v", domain, err)
		outcome.Failure = CustodyExportFailed
		return outcome
	}

	if parsed, err := gpg.ArmoredFingerprints(bytes.NewReader(armored)); err != nil {
		log.Warnf("could not parse export in-process: %v", err)
	} else {
		outcome.ArmoredCount = parsed.Len()
	}

	local, err := v.roundTrip(ctx, armored)
	if err != nil {
		log.Errorf("failed to recheck %s keys on dom0: %v", domain, err)
	}
	outcome.ImportedCount = local.Len()
	for _, fp := range local.Sorted() {
		log.Infof("retrieved key %s", fp)
	}
	if outcome.ArmoredCount >= 0 && outcome.ArmoredCount != local.Len() {
		log.Warnf("export holds %d key(s) but %d were imported", outcome.ArmoredCount, local.Len())
	}

	outcome.Matched, outcome.Failure = evaluateCustody(reference, local, remote)
	return outcome
}

// export pulls the armored keys and keeps a copy for manual recovery
func (v *KeyCustodyVerifier) export(ctx context.Context, domain string) ([]byte, string, error) {
	armored, err := v.Bridge.Run(ctx, domain, exportSecretKeysCmd, nil)
	if err != nil {
		return nil, "", &ExportError{Domain: domain, Err: err}
	}
	if len(bytes.TrimSpace(armored)) == 0 {
		return nil, "", &ExportError{Domain: domain, Err: errors.New("empty export")}
	}

	if err := v.Fs.MkdirAll(v.ExportDir, 0700); err != nil {
		return nil, "", errors.Wrap(err, "create export directory")
	}
	path := filepath.Join(v.ExportDir, ExportFile)
	if err := afero.WriteFile(v.Fs, path, armored, 0600); err != nil {
		return nil, "", errors.Wrapf(err, "write %s", path)
	}
	log.Debugf("wrote %s export to %s", humanize.Bytes(uint64(len(armored))), path)
	return armored, path, nil
}

// roundTrip imports armored into an ephemeral keyring and lists it back.
// The staging directory is erased on every return path.
func (v *KeyCustodyVerifier) roundTrip(ctx context.Context, armored []byte) (gpg.FingerprintSet, error) {
	staging, err := gpg.NewStagingDir(v.StagingParent)
	if err != nil {
		return gpg.NewFingerprintSet(), err
	}
	defer func() {
		if err := staging.Close(); err != nil {
			log.Errorf("failed to clean up staging directory: %v", err)
		}
	}()

	if err := v.Keyring.Import(ctx, staging.Path(), bytes.NewReader(armored)); err != nil {
		return gpg.NewFingerprintSet(), err
	}
	listing, err := v.Keyring.ListSecretKeys(ctx, staging.Path())
	if err != nil {
		return gpg.NewFingerprintSet(), err
	}
	return gpg.ExtractFingerprints(listing), nil
}

// evaluateCustody matches iff the reference is present locally and every
// remote key made the round trip
func evaluateCustody(reference gpg.Fingerprint, local, remote gpg.FingerprintSet) (bool, CustodyFailure) {
	if !local.Has(reference) {
		return false, CustodyBroken
	}
	if local.Len() != remote.Len() {
		return false, CustodyPartialImport
	}
	return true, CustodyOK
}
