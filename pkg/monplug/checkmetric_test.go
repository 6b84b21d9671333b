package monplug

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croxen/monplug/pkg/threshold"
)

func TestCheckMetricString(t *testing.T) {
	warn, err := threshold.Parse("36")
	require.NoError(t, err)
	crit, err := threshold.Parse("48")
	require.NoError(t, err)
	hundred := float64(100)

	for _, check := range []struct {
		metric CheckMetric
		expect string
	}{
		{CheckMetric{Name: "age", Unit: "h", Value: 12.5, Warning: warn, Critical: crit, Min: &Zero}, "'age'=12.5h;36;48;0"},
		{CheckMetric{Name: "usage", Unit: "%", Value: 91, Min: &Zero, Max: &hundred}, "'usage'=91%;;;0;100"},
		{CheckMetric{Name: "offset", Unit: "ms", Value: -1.25}, "'offset'=-1.25ms"},
		{CheckMetric{Name: "count", Value: 3}, "'count'=3"},
		{CheckMetric{Name: "expires", Unit: "d", Value: math.Inf(1)}, "'expires'=Ud"},
	} {
		assert.Equalf(t, check.expect, check.metric.String(), "perfdata for %s", check.metric.Name)
	}
}

func TestCheckMetricThresholdSpelling(t *testing.T) {
	// the original range text shows up in the perfdata untouched
	pair, err := threshold.Parse("@10:20")
	require.NoError(t, err)

	metric := CheckMetric{Name: "load", Value: 1, Warning: pair}
	assert.Equalf(t, "'load'=1;@10:20", metric.String(), "range spelling preserved")
}
