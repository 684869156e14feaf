package migrate

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ReportEntry is the final status of one target
type ReportEntry struct {
	Target Target
	Status Status
	Detail string
}

// Report is the reduced outcome of a run, one entry per known target
type Report struct {
	Entries []ReportEntry
}

// Reduce folds step results into a report. Every target gets exactly one
// entry; a target without a result stays incomplete, and a later result
// for the same target replaces an earlier one.
func Reduce(targets []Target, results ...StepResult) *Report {
	index := make(map[string]int, len(targets))
	report := &Report{Entries: make([]ReportEntry, len(targets))}
	for i, t := range targets {
		index[t.Name] = i
		report.Entries[i] = ReportEntry{Target: t, Status: StatusIncomplete}
	}

	for _, r := range results {
		i, ok := index[r.Target]
		if !ok {
			log.Warnf("ignoring result for unknown target %s", r.Target)
			continue
		}
		report.Entries[i].Status = r.Status
		report.Entries[i].Detail = r.Detail
	}
	return report
}

// Complete reports whether every gated target is complete
func (r *Report) Complete() bool {
	for _, e := range r.Entries {
		if e.Target.Gated && e.Status != StatusComplete {
			return false
		}
	}
	return true
}

// Status returns the status recorded for name
func (r *Report) Status(name string) Status {
	for _, e := range r.Entries {
		if e.Target.Name == name {
			return e.Status
		}
	}
	return StatusIncomplete
}

// Write prints the operator-facing summary
func (r *Report) Write(w io.Writer) error {
	var lines []string
	if r.Complete() {
		lines = append(lines,
			"Credentials and secrets have been collected successfully in the 'migration' directory.",
			"This is not a system backup! Only SecureDrop-Workstation specific configuration files and dom0 files in /etc/qubes have been preserved.",
		)
		for _, e := range r.Entries {
			if e.Status != StatusComplete {
				lines = append(lines, fmt.Sprintf("%s (optional): %s", e.Target.Name, e.Target.Hint))
			}
		}
	} else {
		lines = append(lines,
			"Failed to gather all required assets - additional steps required.",
			"You will need to manually add the missing files to the 'migration' directory.",
		)
		for _, e := range r.Entries {
			lines = append(lines, entryLine(e))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func entryLine(e ReportEntry) string {
	if e.Status == StatusComplete {
		return fmt.Sprintf("%s: [success, no action required]", e.Target.Name)
	}
	return fmt.Sprintf("%s: %s", e.Target.Name, e.Target.Hint)
}
