package monplug

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/croxen/monplug/pkg/threshold"
)

// DefaultCheckTimeout is the check timeout in seconds unless overridden
// with timeout=...
var DefaultCheckTimeout = float64(60)

// CheckArgument describes one key=value argument of a check.
type CheckArgument struct {
	value       interface{} // reference to storage pointer
	description string      // used in help / list output
}

// CheckData contains the runtime data of a generic check plugin.
type CheckData struct {
	name            string
	description     string
	args            map[string]CheckArgument
	rawArgs         []string
	hasArgsSupplied map[string]bool
	argsPassthrough bool // allow arbitrary arguments without complaining
	warnThreshold   *threshold.Range
	critThreshold   *threshold.Range
	defaultWarning  string
	defaultCritical string
	timeout         float64
}

// Name returns the registered check name.
func (cd *CheckData) Name() string {
	return cd.name
}

// Description returns the one line check description.
func (cd *CheckData) Description() string {
	return cd.description
}

// HasArgSupplied returns true if the argument was given on the command line.
func (cd *CheckData) HasArgSupplied(keyword string) bool {
	return cd.hasArgsSupplied[keyword]
}

// ParseArgs parses the key=value check arguments into the CheckData
// struct. Unknown arguments are an error unless argsPassthrough is set.
func (cd *CheckData) ParseArgs(args []string) error {
	cd.rawArgs = args
	cd.hasArgsSupplied = map[string]bool{}
	if cd.timeout <= 0 {
		cd.timeout = DefaultCheckTimeout
	}

	for _, argExpr := range args {
		keyword, argValue, found := strings.Cut(argExpr, "=")
		keyword = strings.TrimSpace(keyword)
		argValue = removeQuotes(argValue)
		if !found {
			argValue = ""
		}

		switch keyword {
		case "warn", "warning":
			warn, err := threshold.Parse(argValue)
			if err != nil {
				return err
			}
			cd.warnThreshold = warn
		case "crit", "critical":
			crit, err := threshold.Parse(argValue)
			if err != nil {
				return err
			}
			cd.critThreshold = crit
		case "timeout":
			timeout, err := strconv.ParseFloat(argValue, 64)
			if err != nil {
				return fmt.Errorf("timeout parse error: %s", err.Error())
			}
			cd.timeout = timeout
		default:
			parsed, err := cd.parseAnyArg(argExpr, keyword, argValue)
			switch {
			case err != nil:
				return err
			case parsed, cd.argsPassthrough:
				// ok
			default:
				return fmt.Errorf("unknown argument: %s", keyword)
			}
		}
	}

	return cd.setThresholdDefaults()
}

func (cd *CheckData) setThresholdDefaults() error {
	if cd.warnThreshold == nil && cd.defaultWarning != "" {
		warn, err := threshold.Parse(cd.defaultWarning)
		if err != nil {
			return err
		}
		cd.warnThreshold = warn
	}
	if cd.critThreshold == nil && cd.defaultCritical != "" {
		crit, err := threshold.Parse(cd.defaultCritical)
		if err != nil {
			return err
		}
		cd.critThreshold = crit
	}

	return nil
}

// parseAnyArg assigns args from the check specific args map.
func (cd *CheckData) parseAnyArg(argExpr, keyword, argValue string) (bool, error) {
	arg, ok := cd.args[keyword]
	if !ok {
		return false, nil
	}

	switch argRef := arg.value.(type) {
	case *[]string:
		if !cd.hasArgsSupplied[keyword] {
			// first occurrence replaces default lists
			*argRef = make([]string, 0)
		}
		*argRef = append(*argRef, argValue)
	case *string:
		*argRef = argValue
	case *float64:
		val, err := strconv.ParseFloat(argValue, 64)
		if err != nil {
			return true, fmt.Errorf("parseFloat %s: %s", argExpr, err.Error())
		}
		*argRef = val
	case *int64:
		val, err := strconv.ParseInt(argValue, 10, 64)
		if err != nil {
			return true, fmt.Errorf("parseInt %s: %s", argExpr, err.Error())
		}
		*argRef = val
	case *bool:
		if argValue == "" {
			*argRef = true
		} else {
			val, err := parseBool(argValue)
			if err != nil {
				return true, fmt.Errorf("parseBool %s: %s", argExpr, err.Error())
			}
			*argRef = val
		}
	default:
		log.Errorf("unsupported args type: %T in %s", argRef, argExpr)
	}

	cd.hasArgsSupplied[keyword] = true

	return true, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on", "enabled":
		return true, nil
	case "0", "false", "no", "off", "disabled":
		return false, nil
	}

	return false, fmt.Errorf("cannot parse boolean value: %s", value)
}

// removeQuotes removes single/double quotes around a string.
func removeQuotes(str string) string {
	str = strings.TrimSpace(str)
	switch {
	case strings.HasPrefix(str, "'") && strings.HasSuffix(str, "'") && len(str) > 1:
		str = strings.TrimSuffix(strings.TrimPrefix(str, "'"), "'")
	case strings.HasPrefix(str, `"`) && strings.HasSuffix(str, `"`) && len(str) > 1:
		str = strings.TrimSuffix(strings.TrimPrefix(str, `"`), `"`)
	}

	return str
}
