package monplug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/sni/shelltoken"
)

const (
	// NAME contains the name of this plugin bundle.
	NAME = "monplug"

	// VERSION contains the version string.
	VERSION = "0.4.0"

	// DefaultCmdTimeout sets the default timeout for external commands
	// in seconds.
	DefaultCmdTimeout = int64(30)
)

// AgentFlags are the command line options shared by all subcommands.
type AgentFlags struct {
	ConfigFile string
	Verbose    int
	Quiet      bool
	LogLevel   string
	Version    bool
	Timeout    float64
	WarningAs  string
	CriticalAs string
	UnknownAs  string
}

// Agent ties the configuration, the exit code mapping and the check
// registry together. One Agent serves one process invocation.
type Agent struct {
	flags     *AgentFlags
	config    *Config
	exitCodes ExitCodeMap
}

// NewAgent creates an agent from parsed flags. A malformed severity
// remap or config file is a startup error, there is no silent fallback.
func NewAgent(flags *AgentFlags) (*Agent, error) {
	snc := &Agent{
		flags:     flags,
		config:    NewConfig(),
		exitCodes: DefaultExitCodes,
	}

	applyLogLevel(flags)

	if flags.ConfigFile != "" {
		conf, err := LoadConfig(flags.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("config: %s", err.Error())
		}
		snc.config = conf
	}

	codes, err := buildExitCodeMap(flags)
	if err != nil {
		return nil, err
	}
	snc.exitCodes = codes

	return snc, nil
}

func applyLogLevel(flags *AgentFlags) {
	switch {
	case flags.Quiet:
		setLogLevel("error")
	case flags.LogLevel != "":
		setLogLevel(flags.LogLevel)
	case flags.Verbose >= 2:
		setLogLevel("trace")
	case flags.Verbose == 1:
		setLogLevel("debug")
	default:
		setLogLevel("error")
	}
}

func buildExitCodeMap(flags *AgentFlags) (ExitCodeMap, error) {
	codes := DefaultExitCodes

	remap := func(name string, target *int64) error {
		if name == "" {
			return nil
		}
		state, err := StateFromString(name)
		if err != nil {
			return err
		}
		*target = state

		return nil
	}

	if err := remap(flags.WarningAs, &codes.Warning); err != nil {
		return codes, err
	}
	if err := remap(flags.CriticalAs, &codes.Critical); err != nil {
		return codes, err
	}
	if err := remap(flags.UnknownAs, &codes.Unknown); err != nil {
		return codes, err
	}

	return codes, nil
}

// Config returns the loaded configuration.
func (snc *Agent) Config() *Config {
	return snc.config
}

// ExitCodes returns the severity to exit code mapping.
func (snc *Agent) ExitCodes() ExitCodeMap {
	return snc.exitCodes
}

// CheckNames returns the sorted list of registered checks.
func CheckNames() []string {
	names := make([]string, 0, len(AvailableChecks))
	for name := range AvailableChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// RunCheck executes a registered check. Failures to acquire data are a
// distinct path from threshold evaluation: any error from the handler
// (or from argument parsing) short circuits into an UNKNOWN result.
func (snc *Agent) RunCheck(ctx context.Context, name string, args []string) *CheckResult {
	entry, ok := AvailableChecks[name]
	if !ok {
		return &CheckResult{
			State:  CheckExitUnknown,
			Output: fmt.Sprintf("unknown check: %s", name),
		}
	}

	handler := entry.Handler()
	check := handler.Build()
	if snc.flags.Timeout > 0 {
		// global flag overrides the check default, timeout=... still wins
		check.timeout = snc.flags.Timeout
	}
	if err := check.ParseArgs(args); err != nil {
		return &CheckResult{
			State:  CheckExitUnknown,
			Output: err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(check.timeout*float64(time.Second)))
	defer cancel()

	res, err := handler.Check(ctx, snc, check)
	if err != nil {
		return &CheckResult{
			State:  CheckExitUnknown,
			Output: err.Error(),
		}
	}

	return res
}

// execCommand runs an external command and returns stdout, stderr and
// the exit code. The command string is tokenized shell style, no shell
// is involved.
func (snc *Agent) execCommand(ctx context.Context, command string, timeout int64) (stdout, stderr string, exitCode int64, err error) {
	log.Debugf("exec: %s", command)

	if timeout <= 0 {
		timeout = DefaultCmdTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	env, argv, err := shelltoken.SplitLinux(command)
	if err != nil {
		return "", "", CheckExitUnknown, fmt.Errorf("command parse error: %s", err.Error())
	}
	if len(argv) == 0 {
		return "", "", CheckExitUnknown, fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(cmd.Environ(), env...)

	var outbuf, errbuf bytes.Buffer
	cmd.Stdout = &outbuf
	cmd.Stderr = &errbuf

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", "", CheckExitUnknown, fmt.Errorf("timeout after %ds: %s", timeout, argv[0])
	}
	if err != nil && cmd.ProcessState == nil {
		return "", "", CheckExitUnknown, fmt.Errorf("proc: %s", err.Error())
	}

	if waitStatus, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		exitCode = int64(waitStatus.ExitStatus())
	}

	stdout = string(bytes.TrimSpace(outbuf.Bytes()))
	stderr = string(bytes.TrimSpace(errbuf.Bytes()))

	return stdout, stderr, exitCode, nil
}
