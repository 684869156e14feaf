package migrate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/threecommaio/sdwmigrate/pkg/gpg"
	"github.com/threecommaio/sdwmigrate/pkg/qrexec"
)

// MigrationDir is created below the working directory for each run
const MigrationDir = "migration"

// Config controls what a migration run collects and where
type Config struct {
	WorkDir     string
	ConfigDir   string
	ConfigFiles []string
	QubesDir    string
	AppDataPath string
	MarginKB    int64
	// RequireAppData makes the sd-app archive part of overall success
	RequireAppData bool
	// StagingParent hosts the ephemeral gpg home, os.TempDir when empty
	StagingParent string
}

// DefaultConfig returns the dom0 layout of a production workstation
func DefaultConfig() Config {
	return Config{
		WorkDir:     ".",
		ConfigDir:   DefaultConfigDir,
		ConfigFiles: []string{ConfigFile, SubmissionKeyFile},
		QubesDir:    DefaultQubesDir,
		AppDataPath: DefaultAppDataPath,
		MarginKB:    DefaultMarginKB,
	}
}

// Migrator runs the whole collection sequence for one invocation
type Migrator struct {
	Config    Config
	Bridge    qrexec.Bridge
	Keyring   gpg.Keyring
	Capacity  Capacity
	Confirmer Confirmer
	Fs        afero.Fs
	// Out receives operator-facing text
	Out io.Writer
	// Progress receives the archive progress bar, none when nil
	Progress io.Writer
	Now      func() time.Time
}

// Targets returns the targets tracked by this run
func (m *Migrator) Targets() []Target {
	return DefaultTargets(m.Config.RequireAppData)
}

// Root is the migration directory for this run
func (m *Migrator) Root() string {
	return filepath.Join(m.Config.WorkDir, MigrationDir)
}

// Run asks for confirmation, collects every target, and prints the report.
// Only a declined confirmation or an unusable migration directory return
// an error; per-target failures end up in the report.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	m.intro()

	ok, err := m.Confirmer.Confirm("Continue? (y/Y to continue, any key to quit) ")
	if err != nil {
		return nil, err
	}
	if !ok {
		fmt.Fprintln(m.Out, "Aborting")
		return nil, ErrConfirmationDeclined
	}

	root := m.Root()
	if err := m.createRoot(root); err != nil {
		return nil, err
	}

	var results []StepResult

	dom0 := &Dom0Capture{
		Fs:        m.Fs,
		ConfigDir: m.Config.ConfigDir,
		Files:     m.Config.ConfigFiles,
		QubesDir:  m.Config.QubesDir,
	}
	result, fingerprint := dom0.Capture(filepath.Join(root, TargetDom0))
	results = append(results, result)

	results = append(results, m.verifyKeys(ctx, root, fingerprint))
	results = append(results, m.transferAppData(ctx, root))

	if _, err := WriteManifest(m.Fs, root, m.now()); err != nil {
		log.Errorf("failed to write manifest: %v", err)
	}

	report := Reduce(m.Targets(), results...)
	if err := report.Write(m.Out); err != nil {
		return report, err
	}
	m.finalInstructions()
	return report, nil
}

func (m *Migrator) createRoot(root string) error {
	exists, err := afero.Exists(m.Fs, root)
	if err != nil {
		return errors.Wrapf(err, "check %s", root)
	}
	if exists {
		return errors.Wrap(errMigrationDirExists, root)
	}
	if err := m.Fs.MkdirAll(root, 0700); err != nil {
		return errors.Wrapf(err, "create %s", root)
	}
	return nil
}

func (m *Migrator) verifyKeys(ctx context.Context, root string, fingerprint gpg.Fingerprint) StepResult {
	verifier := &KeyCustodyVerifier{
		Bridge:        m.Bridge,
		Keyring:       m.Keyring,
		Fs:            m.Fs,
		ExportDir:     filepath.Join(root, TargetGPG),
		StagingParent: m.Config.StagingParent,
	}
	outcome := verifier.Verify(ctx, TargetGPG, fingerprint)
	if outcome.Matched {
		return complete(TargetGPG, fmt.Sprintf("%d key(s) verified", outcome.ImportedCount))
	}
	fmt.Fprintln(m.Out, outcome.Failure)
	return incomplete(TargetGPG, outcome.Failure.String())
}

func (m *Migrator) transferAppData(ctx context.Context, root string) StepResult {
	transfer := &CapacityGatedTransfer{
		Bridge:   m.Bridge,
		Capacity: m.Capacity,
		Fs:       m.Fs,
		Progress: m.Progress,
	}
	outcome := transfer.Transfer(ctx, TargetApp, m.Config.AppDataPath, filepath.Join(root, TargetApp), m.Config.MarginKB)
	if outcome.Performed {
		return complete(TargetApp, outcome.Reason)
	}
	fmt.Fprintln(m.Out, "Problem: "+outcome.Reason)
	return incomplete(TargetApp, outcome.Reason)
}

func (m *Migrator) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Migrator) intro() {
	fmt.Fprintln(m.Out, "SecureDrop Workstation migration helper")
	fmt.Fprintln(m.Out, "This tool is meant to be run in dom0.")
	fmt.Fprintln(m.Out, "It will collect credentials and assets for migration from various parts of your QubesOS system.")
	fmt.Fprintln(m.Out, "Trust, but verify! Review this tool before running it.")
}

func (m *Migrator) finalInstructions() {
	fmt.Fprintln(m.Out, "You are responsible for preserving any of your own customizations, eg via the Qubes Backup tool.")
	fmt.Fprintln(m.Out, "Please transfer the migration directory, and all its contents, to a non-networked VM (vault), using qvm-copy-to-vm.")
	fmt.Fprintln(m.Out, "Then, transfer the directory to a LUKS-encrypted transfer device.")
	fmt.Fprintln(m.Out, "Important: at the end of this migration process, wipe and reformat or destroy that drive.")
}
