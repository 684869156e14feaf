package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Install locations of the dom0 config package
const (
	DefaultScriptsPath = "/usr/share/securedrop-workstation-dom0-config"
	DefaultSaltPath    = "/srv/salt/securedrop_salt"
	saltCache          = "/var/cache/salt"
)

var errRunningAsRoot = errors.New("provisioning cannot be run as root")

// Step is one command in a provisioning plan
type Step struct {
	Name string
	Args []string
}

func (s Step) String() string {
	return fmt.Sprintf("%s: %s", s.Name, strings.Join(s.Args, " "))
}

// StepError reports the step that stopped a plan
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("error during %s: %v", e.Step.Name, e.Err)
}

func (e *StepError) Cause() error  { return e.Err }
func (e *StepError) Unwrap() error { return e.Err }

// Paths locates the dom0 scripts and the salt tree
type Paths struct {
	Scripts string
	Salt    string
}

// DefaultPaths returns the packaged install locations
func DefaultPaths() Paths {
	return Paths{Scripts: DefaultScriptsPath, Salt: DefaultSaltPath}
}

func refreshSalt() []Step {
	return []Step{
		{Name: "clear salt cache", Args: []string{"sudo", "rm", "-rf", saltCache}},
		{Name: "sync salt", Args: []string{"sudo", "qubesctl", "saltutil.sync_all", "refresh=true"}},
	}
}

// ApplyPlan copies the configuration into the salt tree and applies the
// highstate to dom0 and every VM
func ApplyPlan(p Paths) []Step {
	plan := []Step{
		{Name: "install PVH support", Args: []string{"sudo", "qubes-dom0-update", "-y", "-q", "grub2-xen-pvh"}},
		{Name: "copy configuration", Args: []string{"sudo", "cp", filepath.Join(p.Scripts, "config.json"), p.Salt}},
		{Name: "copy submission key", Args: []string{"sudo", "cp", filepath.Join(p.Scripts, "sd-journalist.sec"), p.Salt}},
	}
	plan = append(plan, refreshSalt()...)
	return append(plan, Step{Name: "provision-all", Args: []string{filepath.Join(p.Scripts, "scripts", "provision-all")}})
}

// UninstallPlan destroys the workstation VMs and reverts dom0
func UninstallPlan(p Paths) []Step {
	plan := refreshSalt()
	return append(plan,
		Step{Name: "clean default dispvm", Args: []string{"sudo", "qubesctl", "state.sls", "securedrop_salt.sd-clean-default-dispvm"}},
		Step{Name: "destroy VMs", Args: []string{filepath.Join(p.Scripts, "scripts", "destroy-vm"), "--all"}},
		Step{Name: "revert dom0 configuration", Args: []string{"sudo", "qubesctl", "state.sls", "securedrop_salt.sd-clean-all"}},
		Step{Name: "clean salt", Args: []string{filepath.Join(p.Scripts, "scripts", "clean-salt")}},
		Step{Name: "remove dom0 config package", Args: []string{"sudo", "dnf", "-y", "-q", "remove", "securedrop-workstation-dom0-config"}},
	)
}

// UninstallNotice reminds the operator of what uninstall leaves behind
func UninstallNotice(p Paths) string {
	return "Instance secrets (Journalist Interface token and Submission private key) are still " +
		"present on disk. You can delete them in " + p.Scripts
}

// Exec runs one command to completion
type Exec func(ctx context.Context, args []string) error

func execCommand(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Runner executes plans step by step
type Runner struct {
	Out    io.Writer
	DryRun bool
	Exec   Exec
	Euid   func() int
}

// NewRunner returns a runner executing real commands
func NewRunner(out io.Writer, dryRun bool) *Runner {
	return &Runner{Out: out, DryRun: dryRun, Exec: execCommand, Euid: os.Geteuid}
}

// CheckNotRoot refuses to continue as root; salt is driven through sudo
func (r *Runner) CheckNotRoot() error {
	if r.Euid != nil && r.Euid() == 0 {
		return errRunningAsRoot
	}
	return nil
}

// Run executes plan in order and stops at the first failure
func (r *Runner) Run(ctx context.Context, plan []Step) error {
	for _, step := range plan {
		if r.DryRun {
			fmt.Fprintln(r.Out, step)
			continue
		}
		log.Infof("running step: %s", step.Name)
		if err := r.Exec(ctx, step.Args); err != nil {
			return &StepError{Step: step, Err: err}
		}
	}
	return nil
}
