package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	runCmd := &cobra.Command{
		Use:     "run <check> [key=value ...]",
		Aliases: []string{"check", "do"},
		Short:   "Run a check and exit with its plugin state",
		Long: `Runs the given check once and prints monitoring plugin compatible
output. The exit code carries the check state, subject to the
--warning-as / --critical-as / --unknown-as remapping. OK always
exits with zero.

Examples:

# run with default thresholds
monplug run check_file_age file=/var/run/backup.status

# override thresholds
monplug run check_ntp_peers max_offset=100:200

# treat warnings as ok during a maintenance window
monplug --warning-as=ok run check_rrsig_expiry zone=example.net host=ns1.example.net
`,
		Args: cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			snc := newAgent()

			result := snc.RunCheck(context.Background(), args[0], args[1:])
			fmt.Fprintf(os.Stdout, "%s\n", result.BuildPluginOutput())
			os.Exit(int(snc.ExitCodes().Code(result.State)))
		},
	}
	rootCmd.AddCommand(runCmd)
}
