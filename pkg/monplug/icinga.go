package monplug

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"
)

// PassiveResult is one PROCESS_SERVICE_CHECK_RESULT entry for the
// icinga/nagios command file.
type PassiveResult struct {
	Timestamp time.Time
	HostName  string
	Service   string
	State     int64
	Output    string
}

// String renders the external command line, newlines in the output are
// escaped as the command file format requires.
func (p *PassiveResult) String() string {
	output := strings.ReplaceAll(p.Output, "\n", `\n`)

	return fmt.Sprintf("[%d] PROCESS_SERVICE_CHECK_RESULT;%s;%s;%d;%s",
		p.Timestamp.Unix(), p.HostName, p.Service, p.State, output)
}

// WritePassiveResults appends the given results to the icinga command
// file (a fifo on a live system).
func WritePassiveResults(commandFile string, results []*PassiveResult) error {
	fileHandle, err := os.OpenFile(commandFile, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open command file %s: %s", commandFile, err.Error())
	}
	defer fileHandle.Close()

	for _, res := range results {
		if _, err := fmt.Fprintf(fileHandle, "%s\n", res.String()); err != nil {
			return fmt.Errorf("write command file %s: %s", commandFile, err.Error())
		}
	}

	return nil
}

// BuildScopeServiceConfig generates the icinga service definitions for
// passive DHCP scope checks, one apply block per service name.
func BuildScopeServiceConfig(conf *IcingaConfig, serviceNames []string) []byte {
	var buf bytes.Buffer

	for _, name := range serviceNames {
		fmt.Fprintf(&buf, "apply Service \"%s\" {\n", name)
		fmt.Fprintf(&buf, "  import \"%s\"\n", conf.ScopeTemplate)
		if conf.ScopeAssign != "" {
			fmt.Fprintf(&buf, "  assign where %s\n", conf.ScopeAssign)
		} else {
			fmt.Fprintf(&buf, "  assign where host.name == \"%s\"\n", conf.HostName)
		}
		buf.WriteString("}\n\n")
	}

	return buf.Bytes()
}

// InstallScopeServiceConfig writes the generated config and returns true
// when the file changed and icinga needs a reload. Identical content is
// left untouched.
func InstallScopeServiceConfig(path string, content []byte) (changed bool, err error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %s", path, err.Error())
	}

	return true, nil
}
