package monplug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croxen/monplug/pkg/threshold"
)

func TestCheckResultEscalation(t *testing.T) {
	res := &CheckResult{}
	res.Record(CheckExitOK, "first ok")
	res.Record(CheckExitWarning, "then warning")
	res.Record(CheckExitOK, "ok again")
	res.Record(CheckExitCritical, "finally critical")
	res.Finalize(CheckExitOK, "3 of 4 sub checks failed")

	assert.Equalf(t, CheckExitCritical, res.State, "worst state wins")
	assert.Equalf(t, []string{"first ok", "then warning", "ok again", "finally critical"}, res.Details, "detail order preserved")
}

func TestCheckResultUnknownIsWorst(t *testing.T) {
	res := &CheckResult{}
	res.Record(CheckExitCritical, "critical")
	res.Record(CheckExitUnknown, "unknown")
	res.Finalize(CheckExitOK, "done")

	assert.Equalf(t, CheckExitUnknown, res.State, "unknown ranks above critical")
}

func TestCheckResultFinalizeDefault(t *testing.T) {
	res := &CheckResult{}
	res.Finalize(CheckExitOK, "nothing checked")
	assert.Equalf(t, CheckExitOK, res.State, "default state applies with no records")

	res2 := &CheckResult{}
	res2.Record(CheckExitOK, "checked something")
	res2.Finalize(CheckExitWarning, "all fine")
	assert.Equalf(t, CheckExitOK, res2.State, "recorded state beats the default")
}

func TestCheckResultFinalizeOnce(t *testing.T) {
	res := &CheckResult{}
	res.Finalize(CheckExitCritical, "first")
	res.Finalize(CheckExitOK, "second")

	assert.Equalf(t, CheckExitCritical, res.State, "state frozen after finalize")
	assert.Equalf(t, "first", res.Output, "message frozen after finalize")
}

func TestBuildPluginOutput(t *testing.T) {
	res := &CheckResult{}
	res.Record(CheckExitWarning, "sub check b over limit")
	res.Metrics = append(res.Metrics, &CheckMetric{Name: "usage", Unit: "%", Value: 91.5, Min: &Zero})
	res.Finalize(CheckExitOK, "1 of 2 sub checks failed")

	assert.Equalf(t,
		"WARNING 1 of 2 sub checks failed|'usage'=91.5%;;;0\nsub check b over limit",
		string(res.BuildPluginOutput()),
		"plugin output format")
}

func TestStateFromString(t *testing.T) {
	for name, expect := range map[string]int64{
		"ok": CheckExitOK, "OK": CheckExitOK, "0": CheckExitOK,
		"warning": CheckExitWarning, "warn": CheckExitWarning, "1": CheckExitWarning,
		"critical": CheckExitCritical, "crit": CheckExitCritical, "2": CheckExitCritical,
		"unknown": CheckExitUnknown, "3": CheckExitUnknown,
	} {
		state, err := StateFromString(name)
		require.NoErrorf(t, err, "parsed %s", name)
		assert.Equalf(t, expect, state, "state for %s", name)
	}

	_, err := StateFromString("bogus")
	require.Errorf(t, err, "bogus state name is an error")
}

func TestExitCodeMap(t *testing.T) {
	assert.Equalf(t, CheckExitWarning, DefaultExitCodes.Code(CheckExitWarning), "default mapping is identity")

	codes := ExitCodeMap{Warning: CheckExitOK, Critical: CheckExitWarning, Unknown: CheckExitOK}
	assert.Equalf(t, CheckExitOK, codes.Code(CheckExitOK), "ok always exits zero")
	assert.Equalf(t, CheckExitOK, codes.Code(CheckExitWarning), "warning remapped to ok")
	assert.Equalf(t, CheckExitWarning, codes.Code(CheckExitCritical), "critical remapped to warning")
	assert.Equalf(t, CheckExitOK, codes.Code(CheckExitUnknown), "unknown remapped to ok")
}

func TestCheckWarnCrit(t *testing.T) {
	warn, err := threshold.Parse("90")
	require.NoError(t, err)
	crit, err := threshold.Parse("95")
	require.NoError(t, err)

	assert.Equalf(t, CheckExitOK, CheckWarnCrit(50, warn, crit), "below both limits")
	assert.Equalf(t, CheckExitOK, CheckWarnCrit(90, warn, crit), "limit itself is still ok")
	assert.Equalf(t, CheckExitWarning, CheckWarnCrit(92, warn, crit), "above warning")
	assert.Equalf(t, CheckExitCritical, CheckWarnCrit(99, warn, crit), "above critical")
	assert.Equalf(t, CheckExitOK, CheckWarnCrit(99, nil, nil), "no limits, no alert")
}

func TestCheckWarnCritPair(t *testing.T) {
	pair, err := threshold.Parse("250:500")
	require.NoError(t, err)

	assert.Equalf(t, CheckExitOK, CheckWarnCritPair(100, pair), "below warning bound")
	assert.Equalf(t, CheckExitWarning, CheckWarnCritPair(300, pair), "between bounds")
	assert.Equalf(t, CheckExitCritical, CheckWarnCritPair(600, pair), "above critical bound")
	assert.Equalf(t, CheckExitOK, CheckWarnCritPair(600, nil), "nil pair is ok")
}
