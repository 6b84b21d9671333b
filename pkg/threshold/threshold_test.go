package threshold

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	posInf := math.Inf(1)
	negInf := math.Inf(-1)

	tests := []struct {
		input string
		want  *Range
	}{
		{"100", &Range{input: "100", Start: 0, End: 100}},
		{"-3.4", &Range{input: "-3.4", Start: 0, End: -3.4}},
		{" 3.4", &Range{input: "3.4", Start: 0, End: 3.4}},
		{"10:20", &Range{input: "10:20", Start: 10, End: 20}},
		{"-1.2:3.4", &Range{input: "-1.2:3.4", Start: -1.2, End: 3.4}},
		{"10:", &Range{input: "10:", Start: 10, End: posInf}},
		{":20", &Range{input: ":20", Start: 0, End: 20}},
		{"~:20", &Range{input: "~:20", Start: negInf, End: 20}},
		{"@10:20", &Range{input: "@10:20", Start: 10, End: 20, Invert: true}},
		{"@10:", &Range{input: "@10:", Start: 10, End: posInf, Invert: true}},
	}

	for _, tst := range tests {
		got, err := Parse(tst.input)
		require.NoErrorf(t, err, "parse %q", tst.input)
		assert.Equalf(t, tst.want, got, "parse %q", tst.input)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"",
		"foo",
		"3,4",
		"1:2:3",
		"10:5",
		"@10:5",
		"a:5",
		"5:b",
		"5:~",
	} {
		got, err := Parse(input)
		require.Errorf(t, err, "parse %q must fail", input)
		assert.ErrorIsf(t, err, ErrInvalidRangeSpec, "parse %q", input)
		assert.Nilf(t, got, "parse %q", input)
	}
}

func TestCheckOutside(t *testing.T) {
	t.Parallel()

	zeroTo100, err := Parse("0:100")
	require.NoError(t, err)

	assert.False(t, zeroTo100.Check(50), "50 is inside 0:100")
	assert.True(t, zeroTo100.Check(150), "150 is outside 0:100")
	assert.True(t, zeroTo100.Check(-1), "-1 is outside 0:100")
	assert.False(t, zeroTo100.Check(0), "endpoints are inclusive")
	assert.False(t, zeroTo100.Check(100), "endpoints are inclusive")
}

func TestCheckInverted(t *testing.T) {
	t.Parallel()

	inside10To20, err := Parse("@10:20")
	require.NoError(t, err)

	assert.True(t, inside10To20.Check(15), "15 is inside @10:20")
	assert.True(t, inside10To20.Check(10), "endpoints are inclusive")
	assert.True(t, inside10To20.Check(20), "endpoints are inclusive")
	assert.False(t, inside10To20.Check(5), "5 is outside @10:20")
	assert.False(t, inside10To20.Check(25), "25 is outside @10:20")
}

func TestCheckOpenEnds(t *testing.T) {
	t.Parallel()

	tenUp, err := Parse("10:")
	require.NoError(t, err)
	assert.True(t, tenUp.Check(9.99))
	assert.False(t, tenUp.Check(1e12))

	negInfTo10, err := Parse("~:10")
	require.NoError(t, err)
	assert.False(t, negInfTo10.Check(-1e12))
	assert.True(t, negInfTo10.Check(10.01))
}
