package monplug

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

func init() {
	AvailableChecks["check_zonemaster"] = CheckEntry{"check_zonemaster", func() CheckHandler { return NewCheckZonemaster() }}
}

// zonemasterTests are the test modules requested from zonemaster-cli.
var zonemasterTests = []string{
	"Address/address01",
	"Basic",
	"Connectivity",
	"Consistency",
	"DNSSEC",
	"Delegation",
	"Nameserver",
	"Syntax",
	"Zone",
}

// ZonemasterMessage is one entry of the zonemaster-cli --json output.
type ZonemasterMessage struct {
	Level  string                 `json:"level"`
	Module string                 `json:"module"`
	Tag    string                 `json:"tag"`
	Args   map[string]interface{} `json:"args"`
}

// State maps the zonemaster message level onto a check state. Unknown
// levels count as UNKNOWN so new levels never pass silently.
func (z *ZonemasterMessage) State() int64 {
	switch z.Level {
	case "INFO", "NOTICE":
		return CheckExitOK
	case "WARNING":
		return CheckExitWarning
	case "ERROR", "CRITICAL":
		return CheckExitCritical
	}

	return CheckExitUnknown
}

func (z *ZonemasterMessage) String() string {
	text := fmt.Sprintf("level %s, module %s, tag %s", z.Level, z.Module, z.Tag)
	if len(z.Args) > 0 {
		args := make([]string, 0, len(z.Args))
		for key, val := range z.Args {
			args = append(args, fmt.Sprintf("%s=%v", key, val))
		}
		sort.Strings(args)
		text += fmt.Sprintf(" args(%s)", strings.Join(args, ", "))
	}

	return text
}

// CheckZonemaster runs zonemaster-cli for each zone and aggregates the
// worst message level per zone. With icinga=true each zone is also fed
// into the icinga command file as a passive "Zonemaster" service result.
type CheckZonemaster struct {
	zones  []string
	icinga bool
}

func NewCheckZonemaster() *CheckZonemaster {
	return &CheckZonemaster{}
}

func (l *CheckZonemaster) Build() *CheckData {
	return &CheckData{
		name:        "check_zonemaster",
		description: "Checks zones for delegation/DNSSEC problems using zonemaster-cli.",
		args: map[string]CheckArgument{
			"zone":   {value: &l.zones, description: "Zone to check, repeat for multiple (default: zones from the config file)"},
			"icinga": {value: &l.icinga, description: "Feed per zone results into the icinga command file"},
		},
		timeout: 300,
	}
}

func (l *CheckZonemaster) Check(ctx context.Context, snc *Agent, check *CheckData) (*CheckResult, error) {
	conf := snc.Config()
	zones := l.zones
	if len(zones) == 0 {
		zones = conf.Zonemaster.Zones
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("no zones given, use zone=... or the config file")
	}

	res := &CheckResult{}
	passive := make([]*PassiveResult, 0, len(zones))
	problems := 0
	for _, zone := range zones {
		state, summary, err := l.checkZone(ctx, snc, conf, zone)
		if err != nil {
			return nil, err
		}
		if state != CheckExitOK {
			problems++
		}
		res.Record(state, fmt.Sprintf("Zone %s: %s (%s)", zone, summary, StateString(state)))

		passive = append(passive, &PassiveResult{
			Timestamp: time.Now(),
			HostName:  fmt.Sprintf("%s - domain", zone),
			Service:   "Zonemaster",
			State:     state,
			Output:    summary,
		})
	}

	res.Metrics = append(res.Metrics,
		&CheckMetric{Name: "zones", Value: float64(len(zones)), Min: &Zero},
		&CheckMetric{Name: "problems", Value: float64(problems), Min: &Zero},
	)

	if l.icinga {
		if err := WritePassiveResults(conf.Icinga.CommandFile, passive); err != nil {
			return nil, err
		}
	}

	if problems > 0 {
		res.Finalize(res.State, fmt.Sprintf("%d of %d zones with problems", problems, len(zones)))
	} else {
		res.Finalize(CheckExitOK, fmt.Sprintf("%d zones checked", len(zones)))
	}

	return res, nil
}

// checkZone runs zonemaster-cli for one zone and condenses its messages
// into a state and a one line summary.
func (l *CheckZonemaster) checkZone(ctx context.Context, snc *Agent, conf *Config, zone string) (state int64, summary string, err error) {
	command := conf.Zonemaster.Command
	for _, test := range zonemasterTests {
		command += " --test " + test
	}
	command += " " + zone

	output, stderr, exitCode, err := snc.execCommand(ctx, command, int64(DefaultCheckTimeout*5))
	if err != nil {
		return CheckExitUnknown, "", fmt.Errorf("zonemaster-cli failed for %s: %s", zone, err.Error())
	}
	if exitCode != 0 {
		return CheckExitUnknown, "", fmt.Errorf("zonemaster-cli failed for %s: %s\n%s", zone, output, stderr)
	}

	var messages []ZonemasterMessage
	if err := json.Unmarshal([]byte(output), &messages); err != nil {
		return CheckExitUnknown, "", fmt.Errorf("cannot parse zonemaster output for %s: %s", zone, err.Error())
	}

	state, summary = condenseZonemasterMessages(messages)

	return state, summary, nil
}

// condenseZonemasterMessages reduces the message list to the worst state
// and a one line summary naming the first problem.
func condenseZonemasterMessages(messages []ZonemasterMessage) (state int64, summary string) {
	state = CheckExitOK
	lines := make([]string, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		msgState := msg.State()
		if msgState > state {
			state = msgState
		}
		if msgState != CheckExitOK {
			lines = append(lines, msg.String())
		}
	}

	switch {
	case len(lines) == 0:
		summary = fmt.Sprintf("%d messages, no problems", len(messages))
	case len(lines) == 1:
		summary = lines[0]
	default:
		summary = fmt.Sprintf("%s (+%d more)", lines[0], len(lines)-1)
	}

	return state, summary
}
