package monplug

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

func init() {
	AvailableChecks["check_file_age"] = CheckEntry{"check_file_age", func() CheckHandler { return &CheckFileAge{} }}
}

// CheckFileAge verifies a status file written by some other check,
// typically from cron. Too old files raise warning/critical, otherwise
// the status word at the start of the first line is adopted and the file
// content is shown as details.
type CheckFileAge struct {
	file string
}

func (l *CheckFileAge) Build() *CheckData {
	return &CheckData{
		name:        "check_file_age",
		description: "Checks the age of a status file and adopts the status found on its first line.",
		args: map[string]CheckArgument{
			"file": {value: &l.file, description: "File to check"},
		},
		defaultWarning:  "36", // hours
		defaultCritical: "48",
	}
}

func (l *CheckFileAge) Check(_ context.Context, _ *Agent, check *CheckData) (*CheckResult, error) {
	if l.file == "" {
		return nil, fmt.Errorf("file argument is required")
	}

	stat, err := os.Stat(l.file)
	if err != nil {
		return nil, fmt.Errorf("cannot stat file %s: %s", l.file, err.Error())
	}

	ageHours := time.Since(stat.ModTime()).Hours()
	res := &CheckResult{
		Metrics: []*CheckMetric{
			{Name: "age", Unit: "h", Value: ageHours, Warning: check.warnThreshold, Critical: check.critThreshold, Min: &Zero},
		},
	}

	if state := CheckWarnCrit(ageHours, check.warnThreshold, check.critThreshold); state != CheckExitOK {
		res.Finalize(state, fmt.Sprintf("File %s last modified %.2f hours ago, older than limit", l.file, ageHours))

		return res, nil
	}

	state, details, err := l.readStatusFile()
	if err != nil {
		return nil, err
	}
	res.Details = details
	res.Finalize(state, fmt.Sprintf("File %s last modified %.2f hours ago", l.file, ageHours))

	return res, nil
}

// readStatusFile extracts the embedded status from the first line and
// collects all lines as detail output.
func (l *CheckFileAge) readStatusFile() (state int64, details []string, err error) {
	fileHandle, err := os.Open(l.file)
	if err != nil {
		return CheckExitUnknown, nil, fmt.Errorf("cannot open file %s: %s", l.file, err.Error())
	}
	defer fileHandle.Close()

	state = CheckExitUnknown
	first := true
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if first {
			state = statusFromLine(line)
			first = false
		}
		details = append(details, line)
	}
	if err := scanner.Err(); err != nil {
		return CheckExitUnknown, nil, fmt.Errorf("cannot read file %s: %s", l.file, err.Error())
	}
	if first {
		// empty file has no status line
		return CheckExitUnknown, nil, nil
	}

	return state, details, nil
}

func statusFromLine(line string) int64 {
	lower := strings.ToLower(line)
	for _, state := range []int64{CheckExitOK, CheckExitWarning, CheckExitCritical, CheckExitUnknown} {
		if strings.HasPrefix(lower, strings.ToLower(StateString(state))) {
			return state
		}
	}

	return CheckExitUnknown
}
