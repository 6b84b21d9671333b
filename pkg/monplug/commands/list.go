package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/croxen/monplug/pkg/monplug"
)

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the available checks",
		Run: func(_ *cobra.Command, _ []string) {
			writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			for _, name := range monplug.CheckNames() {
				check := monplug.AvailableChecks[name].Handler().Build()
				fmt.Fprintf(writer, "%s\t%s\n", check.Name(), check.Description())
			}
			writer.Flush()
		},
	}
	rootCmd.AddCommand(listCmd)
}
