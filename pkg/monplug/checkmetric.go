package monplug

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/croxen/monplug/pkg/threshold"
)

// Zero is handy for metric Min/Max pointers.
var Zero = float64(0)

// CheckMetric contains a single performance value.
type CheckMetric struct {
	Name     string
	Unit     string
	Value    float64
	Warning  *threshold.Range // threshold used for warnings
	Critical *threshold.Range // threshold used for critical
	Min      *float64
	Max      *float64
}

// String renders the perfdata token: 'name'=value[unit];warn;crit;min;max
func (m *CheckMetric) String() string {
	var res bytes.Buffer

	res.WriteString(fmt.Sprintf("'%s'=%s%s", m.Name, formatNumber(m.Value), m.Unit))

	res.WriteString(";")
	if m.Warning != nil {
		res.WriteString(m.Warning.String())
	}

	res.WriteString(";")
	if m.Critical != nil {
		res.WriteString(m.Critical.String())
	}

	res.WriteString(";")
	if m.Min != nil {
		res.WriteString(formatNumber(*m.Min))
	}

	res.WriteString(";")
	if m.Max != nil {
		res.WriteString(formatNumber(*m.Max))
	}

	resStr := res.String()
	for strings.HasSuffix(resStr, ";") {
		resStr = strings.TrimSuffix(resStr, ";")
	}

	return resStr
}

func formatNumber(val float64) string {
	if math.IsInf(val, 0) || math.IsNaN(val) {
		return "U"
	}

	return strconv.FormatFloat(val, 'f', -1, 64)
}
