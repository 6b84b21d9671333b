// Package threshold implements the nagios range format:
// https://www.monitoring-plugins.org/doc/guidelines.html#THRESHOLDFORMAT
package threshold

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRangeSpec is returned for malformed or self-contradictory
// range specifications. Thresholds come from static configuration, so a
// parse failure is fatal for the check that requested it.
var ErrInvalidRangeSpec = errors.New("invalid range specification")

// Range is a parsed nagios range. The default alert rule is "value is
// outside [Start, End]", endpoints included. With Invert set (leading @
// in the specification) the rule flips to "value is inside [Start, End]".
type Range struct {
	input  string
	Start  float64
	End    float64
	Invert bool
}

// String returns the original range specification.
func (r *Range) String() string {
	return r.input
}

// Parse decodes a range specification.
//
//	"10"     ->  0..10
//	"10:"    -> 10..inf
//	"~:10"   -> -inf..10
//	"10:20"  -> 10..20
//	"@10:20" -> 10..20, inverted
func Parse(spec string) (*Range, error) {
	def := strings.TrimSpace(spec)
	res := &Range{input: def, Start: 0, End: math.Inf(1)}

	if strings.HasPrefix(def, "@") {
		res.Invert = true
		def = strings.TrimPrefix(def, "@")
	}

	parts := strings.Split(def, ":")
	switch len(parts) {
	case 1:
		end, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: end is not a number", ErrInvalidRangeSpec, spec)
		}
		res.End = end
	case 2:
		switch parts[0] {
		case "":
			// start defaults to zero
		case "~":
			res.Start = math.Inf(-1)
		default:
			start, err := strconv.ParseFloat(parts[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: start is not a number", ErrInvalidRangeSpec, spec)
			}
			res.Start = start
		}
		if parts[1] != "" {
			end, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: end is not a number", ErrInvalidRangeSpec, spec)
			}
			res.End = end
		}
	default:
		return nil, fmt.Errorf("%w: %q: more than one colon", ErrInvalidRangeSpec, spec)
	}

	if res.Start > res.End {
		return nil, fmt.Errorf("%w: %q: start must be lower than end", ErrInvalidRangeSpec, spec)
	}

	return res, nil
}

// Check returns true when the given value raises an alert.
func (r *Range) Check(value float64) bool {
	outside := value < r.Start || value > r.End
	if r.Invert {
		return !outside
	}

	return outside
}
