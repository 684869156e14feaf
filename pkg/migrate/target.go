package migrate

// Status of a single backup target
type Status int

// Target statuses. The zero value is incomplete.
const (
	StatusIncomplete Status = iota
	StatusComplete
)

func (s Status) String() string {
	if s == StatusComplete {
		return "COMPLETE"
	}
	return "INCOMPLETE"
}

// Target is one migration unit: a domain and what the operator has to do
// by hand when it cannot be captured automatically
type Target struct {
	Name string
	Hint string
	// Gated targets must be complete for the run to count as successful
	Gated bool
}

// StepResult is the outcome of one step against one target
type StepResult struct {
	Target string
	Status Status
	Detail string
}

func complete(target, detail string) StepResult {
	return StepResult{Target: target, Status: StatusComplete, Detail: detail}
}

func incomplete(target, detail string) StepResult {
	return StepResult{Target: target, Status: StatusIncomplete, Detail: detail}
}

// Well-known target names
const (
	TargetDom0 = "dom0"
	TargetGPG  = "sd-gpg"
	TargetApp  = "sd-app"
)

// DefaultTargets returns the targets collected by a migration run.
// requireAppData decides whether sd-app must be archived for success.
func DefaultTargets(requireAppData bool) []Target {
	return []Target{
		{Name: TargetDom0, Hint: "dom0 configuration files and /etc/qubes directory", Gated: true},
		{Name: TargetGPG, Hint: "sd-gpg GPG private keys", Gated: true},
		{Name: TargetApp, Hint: "/home/user/.securedrop_client directory", Gated: requireAppData},
	}
}
