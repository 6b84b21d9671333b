package monplug

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zonemasterFixture = `[
  {"level": "INFO", "module": "SYSTEM", "tag": "GLOBAL_VERSION", "args": {"version": "v4.0.1"}},
  {"level": "NOTICE", "module": "BASIC", "tag": "HAS_NAMESERVERS", "args": {}},
  {"level": "WARNING", "module": "CONNECTIVITY", "tag": "IPV6_DISABLED", "args": {"ns": "ns2.example.net"}},
  {"level": "ERROR", "module": "DNSSEC", "tag": "RRSIG_EXPIRED", "args": {"expiration": "1713187200", "keytag": "44410"}}
]`

func TestZonemasterMessageState(t *testing.T) {
	for level, expect := range map[string]int64{
		"INFO":     CheckExitOK,
		"NOTICE":   CheckExitOK,
		"WARNING":  CheckExitWarning,
		"ERROR":    CheckExitCritical,
		"CRITICAL": CheckExitCritical,
		"WEIRD":    CheckExitUnknown,
	} {
		msg := ZonemasterMessage{Level: level}
		assert.Equalf(t, expect, msg.State(), "state for level %s", level)
	}
}

func TestZonemasterMessageString(t *testing.T) {
	msg := ZonemasterMessage{
		Level:  "ERROR",
		Module: "DNSSEC",
		Tag:    "RRSIG_EXPIRED",
		Args:   map[string]interface{}{"keytag": "44410", "expiration": "1713187200"},
	}
	assert.Equalf(t,
		"level ERROR, module DNSSEC, tag RRSIG_EXPIRED args(expiration=1713187200, keytag=44410)",
		msg.String(), "args sorted and rendered")

	plain := ZonemasterMessage{Level: "NOTICE", Module: "BASIC", Tag: "HAS_NAMESERVERS"}
	assert.Equalf(t, "level NOTICE, module BASIC, tag HAS_NAMESERVERS", plain.String(), "no args suffix")
}

func TestCondenseZonemasterMessages(t *testing.T) {
	var messages []ZonemasterMessage
	require.NoError(t, json.Unmarshal([]byte(zonemasterFixture), &messages))

	state, summary := condenseZonemasterMessages(messages)
	assert.Equalf(t, CheckExitCritical, state, "worst level wins")
	assert.Containsf(t, summary, "level WARNING, module CONNECTIVITY", "first problem named")
	assert.Containsf(t, summary, "(+1 more)", "remaining problem count")

	state, summary = condenseZonemasterMessages(messages[:2])
	assert.Equalf(t, CheckExitOK, state, "info and notice are ok")
	assert.Equalf(t, "2 messages, no problems", summary, "clean summary")

	state, summary = condenseZonemasterMessages(messages[:3])
	assert.Equalf(t, CheckExitWarning, state, "single warning")
	assert.Containsf(t, summary, "IPV6_DISABLED", "the one problem is the summary")
}

func TestCheckZonemasterNoZones(t *testing.T) {
	snc := newTestAgent(t)
	res := snc.RunCheck(context.Background(), "check_zonemaster", []string{})
	assert.Equalf(t, CheckExitUnknown, res.State, "no zones configured is UNKNOWN")
	assert.Containsf(t, res.Output, "no zones given", "problem reported")
}
