package monplug

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/croxen/monplug/pkg/threshold"
)

const (
	// CheckExitOK is used for normal exits.
	CheckExitOK = int64(0)

	// CheckExitWarning is used for warnings.
	CheckExitWarning = int64(1)

	// CheckExitCritical is used for critical errors.
	CheckExitCritical = int64(2)

	// CheckExitUnknown is used when the check runs into a problem itself.
	CheckExitUnknown = int64(3)
)

// StateString returns the nagios name for a check state.
func StateString(state int64) string {
	switch state {
	case CheckExitOK:
		return "OK"
	case CheckExitWarning:
		return "WARNING"
	case CheckExitCritical:
		return "CRITICAL"
	}

	return "UNKNOWN"
}

// StateFromString parses a state name as used by the --warning-as /
// --critical-as / --unknown-as flags.
func StateFromString(name string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ok", "0":
		return CheckExitOK, nil
	case "warning", "warn", "1":
		return CheckExitWarning, nil
	case "critical", "crit", "2":
		return CheckExitCritical, nil
	case "unknown", "3":
		return CheckExitUnknown, nil
	}

	return CheckExitUnknown, fmt.Errorf("unknown state name: %s", name)
}

// ExitCodeMap translates check states into process exit codes. It is
// built once from the command line flags and passed along explicitly,
// there is no global remapping state. OK always exits with zero.
type ExitCodeMap struct {
	Warning  int64
	Critical int64
	Unknown  int64
}

// DefaultExitCodes is the standard nagios mapping.
var DefaultExitCodes = ExitCodeMap{
	Warning:  CheckExitWarning,
	Critical: CheckExitCritical,
	Unknown:  CheckExitUnknown,
}

// Code returns the exit code for the given check state.
func (m ExitCodeMap) Code(state int64) int64 {
	switch state {
	case CheckExitWarning:
		return m.Warning
	case CheckExitCritical:
		return m.Critical
	case CheckExitUnknown:
		return m.Unknown
	}

	return CheckExitOK
}

// CheckResult accumulates the outcome of a single check run: the worst
// state seen, one detail line per sub check in recorded order and the
// performance data.
type CheckResult struct {
	State   int64
	Output  string
	Details []string
	Metrics []*CheckMetric

	recorded  bool
	finalized bool
}

// EscalateStatus raises the state to the given one if it is worse.
// Severity ranking is OK < WARNING < CRITICAL < UNKNOWN.
func (cr *CheckResult) EscalateStatus(state int64) {
	if state > cr.State {
		cr.State = state
	}
	cr.recorded = true
}

// Record appends a detail line and escalates the state.
func (cr *CheckResult) Record(state int64, detail string) {
	cr.Details = append(cr.Details, detail)
	cr.EscalateStatus(state)
}

// Finalize freezes the result with the given message. The default state
// only applies when nothing has been recorded, recorded states always
// win. Calling it twice keeps the first outcome.
func (cr *CheckResult) Finalize(defaultState int64, message string) {
	if cr.finalized {
		return
	}
	if !cr.recorded {
		cr.State = defaultState
	}
	cr.Output = message
	cr.finalized = true
}

// BuildPluginOutput renders the plugin protocol text:
//
//	SEVERITY message|perfdata
//	detail line
//	...
func (cr *CheckResult) BuildPluginOutput() []byte {
	var output bytes.Buffer

	output.WriteString(StateString(cr.State))
	if cr.Output != "" {
		output.WriteByte(' ')
		output.WriteString(cr.Output)
	}
	if len(cr.Metrics) > 0 {
		perf := make([]string, 0, len(cr.Metrics))
		for _, m := range cr.Metrics {
			perf = append(perf, m.String())
		}
		output.WriteByte('|')
		output.WriteString(strings.Join(perf, " "))
	}
	for _, detail := range cr.Details {
		output.WriteByte('\n')
		output.WriteString(detail)
	}

	return output.Bytes()
}

// CheckWarnCrit classifies a value against two one-sided thresholds.
// Only the End bound of each range is consulted, Start and Invert are
// ignored by contract. This deliberately stays separate from
// Range.Check, both comparison styles are in use.
func CheckWarnCrit(value float64, warning, critical *threshold.Range) int64 {
	switch {
	case critical != nil && value > critical.End:
		return CheckExitCritical
	case warning != nil && value > warning.End:
		return CheckExitWarning
	}

	return CheckExitOK
}

// CheckWarnCritPair classifies a value against a combined "warn:crit"
// range where Start carries the warning bound and End the critical one,
// ex.: max_offset=250:500.
func CheckWarnCritPair(value float64, pair *threshold.Range) int64 {
	switch {
	case pair == nil:
		return CheckExitOK
	case value > pair.End:
		return CheckExitCritical
	case value > pair.Start:
		return CheckExitWarning
	}

	return CheckExitOK
}
