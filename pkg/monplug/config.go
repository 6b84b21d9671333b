package monplug

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional yaml configuration. Only the checks talking to
// configured infrastructure (BECS, zonemaster, the icinga passive
// feedback) and the web listener read from it.
type Config struct {
	BECS       BECSConfig       `yaml:"becs"`
	Zonemaster ZonemasterConfig `yaml:"zonemaster"`
	Icinga     IcingaConfig     `yaml:"icinga"`
	Listener   ListenerConfig   `yaml:"listener"`
}

// BECSConfig holds the BECS EAPI endpoint and credentials.
type BECSConfig struct {
	EAPI     string `yaml:"eapi"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ScopeOID int64  `yaml:"scope_oid"`
}

// ZonemasterConfig holds the zonemaster-cli invocation and the zones to
// check when no zone= argument is given.
type ZonemasterConfig struct {
	Command string   `yaml:"command"`
	Zones   []string `yaml:"zones"`
}

// IcingaConfig describes where passive check results are fed into.
type IcingaConfig struct {
	CommandFile   string `yaml:"command_file"`
	HostName      string `yaml:"host_name"`
	ScopeConfFile string `yaml:"dhcp_scope_conf_file"`
	ReloadCommand string `yaml:"reload_command"`
	ScopeTemplate string `yaml:"dhcp_scope_template"`
	ScopeAssign   string `yaml:"dhcp_scope_assign"`
}

// ListenerConfig configures the http server mode.
type ListenerConfig struct {
	Bind string `yaml:"bind"`
}

// NewConfig returns a config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Zonemaster: ZonemasterConfig{
			Command: "zonemaster-cli --json",
		},
		Icinga: IcingaConfig{
			CommandFile:   "/var/run/icinga2/cmd/icinga2.cmd",
			ReloadCommand: "systemctl reload icinga2.service",
			ScopeTemplate: "dhcp-scope-free-addresses",
		},
		Listener: ListenerConfig{
			Bind: "127.0.0.1:8443",
		},
	}
}

// LoadConfig reads and parses the yaml config file. Unknown keys are an
// error, a typo must not silently disable a section.
func LoadConfig(path string) (*Config, error) {
	fileHandle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %s", path, err.Error())
	}
	defer fileHandle.Close()

	conf := NewConfig()
	decoder := yaml.NewDecoder(fileHandle)
	decoder.KnownFields(true)
	if err := decoder.Decode(conf); err != nil {
		return nil, fmt.Errorf("parse %s: %s", path, err.Error())
	}

	return conf, nil
}
