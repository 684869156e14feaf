package policy

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/threecommaio/sdwmigrate/pkg/qrexec"
	yaml "gopkg.in/yaml.v2"
)

// Exit statuses of qrexec-client-vm as seen through the bridge
const (
	ReturnCodeSuccess = 0
	ReturnCodeDenied  = 126
)

// DefaultPolicyFiles are the policy files installed by the workstation
var DefaultPolicyFiles = []string{
	"/etc/qubes/policy.d/31-securedrop-workstation.policy",
	"/etc/qubes/policy.d/32-securedrop-workstation.policy",
}

// Expectation is one RPC call and whether policy should let it through
type Expectation struct {
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	Service string `yaml:"service"`
	Allow   bool   `yaml:"allow"`
}

func (e Expectation) String() string {
	verdict := "denied"
	if e.Allow {
		verdict = "allowed"
	}
	return fmt.Sprintf("%s from %s to %s should be %s", e.Service, e.Source, e.Target, verdict)
}

// DefaultExpectations covers the RPC policies installed by the workstation.
// sd-app carries the sd-client tag.
var DefaultExpectations = []Expectation{
	{Source: "sd-app", Target: "sd-log", Service: "securedrop.Log", Allow: true},
	{Source: "sys-net", Target: "sd-log", Service: "securedrop.Log", Allow: false},
	{Source: "sys-firewall", Target: "sd-log", Service: "securedrop.Log", Allow: false},
	{Source: "sd-app", Target: "sd-proxy", Service: "securedrop.Proxy", Allow: true},
	{Source: "sys-net", Target: "sd-proxy", Service: "securedrop.Proxy", Allow: false},
	{Source: "sys-firewall", Target: "sd-proxy", Service: "securedrop.Proxy", Allow: false},
	{Source: "sd-app", Target: "sd-gpg", Service: "qubes.Gpg", Allow: true},
	{Source: "sd-app", Target: "sd-gpg", Service: "qubes.GpgImportKey", Allow: true},
	{Source: "sd-app", Target: "sd-gpg", Service: "qubes.Gpg2", Allow: true},
	{Source: "sys-net", Target: "sd-gpg", Service: "qubes.Gpg", Allow: false},
	{Source: "sys-net", Target: "sd-gpg", Service: "qubes.GpgImportKey", Allow: false},
	{Source: "sys-net", Target: "sd-gpg", Service: "qubes.Gpg2", Allow: false},
	{Source: "sd-proxy", Target: "sd-app", Service: "qubes.Filecopy", Allow: true},
	{Source: "sys-net", Target: "sd-app", Service: "qubes.Filecopy", Allow: false},
}

type expectationFile struct {
	Expectations []Expectation `yaml:"expectations"`
}

// LoadExpectations reads an expectation table from a YAML file
func LoadExpectations(fs afero.Fs, filename string) ([]Expectation, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, err
	}
	var f expectationFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parse %s", filename)
	}
	for i, e := range f.Expectations {
		if e.Source == "" || e.Target == "" || e.Service == "" {
			return nil, errors.Errorf("%s: expectation %d needs source, target and service", filename, i+1)
		}
	}
	return f.Expectations, nil
}

// Result is the observed behaviour for one expectation
type Result struct {
	Expectation Expectation
	ExitCode    int
	Err         error
}

// Passed reports whether the observed exit status matches the expectation
func (r Result) Passed() bool {
	if r.Expectation.Allow {
		return r.ExitCode == ReturnCodeSuccess
	}
	return r.ExitCode == ReturnCodeDenied
}

// Checker drives RPC calls through the bridge
type Checker struct {
	Bridge qrexec.Bridge
}

// Check runs every expectation in order
func (c *Checker) Check(ctx context.Context, exps []Expectation) []Result {
	results := make([]Result, 0, len(exps))
	for _, e := range exps {
		command := fmt.Sprintf("qrexec-client-vm %s %s", e.Target, e.Service)
		_, err := c.Bridge.Run(ctx, e.Source, command, nil)

		result := Result{Expectation: e, ExitCode: qrexec.ExitCode(err)}
		if result.ExitCode != ReturnCodeSuccess && result.ExitCode != ReturnCodeDenied {
			result.Err = err
		}
		log.Debugf("%s: exit status %d", e, result.ExitCode)
		results = append(results, result)
	}
	return results
}

// MissingPolicyFiles returns the entries of paths that do not exist
func MissingPolicyFiles(fs afero.Fs, paths []string) []string {
	var missing []string
	for _, p := range paths {
		if ok, err := afero.Exists(fs, p); err != nil || !ok {
			missing = append(missing, p)
		}
	}
	return missing
}
