package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/croxen/monplug/pkg/monplug"
)

var agentFlags = &monplug.AgentFlags{}

var rootCmd = &cobra.Command{
	Use:   "monplug [global flags] [command]",
	Short: "Monitoring plugin bundle for Naemon, Nagios and Icinga.",
	Long: `monplug bundles a set of infrastructure checks behind one binary.
Each check follows the monitoring plugin conventions: exit code carries
the state, the first output line carries the message and the perfdata.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Usage()
		os.Exit(int(monplug.CheckExitUnknown))
	},
	PreRun: func(_ *cobra.Command, _ []string) {
		if agentFlags.Version {
			fmt.Fprintf(os.Stdout, "%s v%s\n", monplug.NAME, monplug.VERSION)
			os.Exit(0)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&agentFlags.Version, "version", "V", false, "print version and exit")
	rootCmd.PersistentFlags().StringVarP(&agentFlags.ConfigFile, "config", "c", "", "path to the yaml config file")
	rootCmd.PersistentFlags().BoolVarP(&agentFlags.Quiet, "quiet", "q", false, "set loglevel to error")
	rootCmd.PersistentFlags().CountVarP(&agentFlags.Verbose, "verbose", "v", "increase loglevel, -v means debug, -vv means trace")
	rootCmd.PersistentFlags().StringVarP(&agentFlags.LogLevel, "loglevel", "", "", "set loglevel to one of: off, error, info, debug, trace")
	rootCmd.PersistentFlags().Float64VarP(&agentFlags.Timeout, "timeout", "t", 0, "override the default check timeout in seconds")
	rootCmd.PersistentFlags().StringVarP(&agentFlags.WarningAs, "warning-as", "", "", "report WARNING results with this state's exit code")
	rootCmd.PersistentFlags().StringVarP(&agentFlags.CriticalAs, "critical-as", "", "", "report CRITICAL results with this state's exit code")
	rootCmd.PersistentFlags().StringVarP(&agentFlags.UnknownAs, "unknown-as", "", "", "report UNKNOWN results with this state's exit code")

	rootCmd.DisableAutoGenTag = true
	rootCmd.DisableSuggestions = true
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.Flags().SortFlags = false
}

// Execute runs the command line interface, it only returns on usage
// errors. Subcommands exit the process themselves.
func Execute() error {
	sanitizeOSArgs()

	return rootCmd.Execute()
}

// sanitizeOSArgs accepts single dash spellings of the long flags, the
// classic monitoring plugin style (-warning-as ok).
func sanitizeOSArgs() {
	replace := map[string]string{}
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if len(f.Name) > 1 {
			replace["-"+f.Name] = "--" + f.Name
		}
	})

	for i, arg := range os.Args {
		if i == 0 {
			continue
		}
		if r, ok := replace[arg]; ok {
			os.Args[i] = r

			continue
		}
		for from, to := range replace {
			if strings.HasPrefix(arg, from+"=") {
				os.Args[i] = to + "=" + strings.TrimPrefix(arg, from+"=")
			}
		}
	}
}

// newAgent builds the agent from the global flags, startup problems are
// reported as UNKNOWN the way a broken plugin invocation should be.
func newAgent() *monplug.Agent {
	snc, err := monplug.NewAgent(agentFlags)
	if err != nil {
		fmt.Fprintf(os.Stdout, "UNKNOWN %s\n", err.Error())
		os.Exit(int(monplug.CheckExitUnknown))
	}

	return snc
}
