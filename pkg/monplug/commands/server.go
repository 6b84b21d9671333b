package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/croxen/monplug/pkg/monplug"
)

func init() {
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the checks over a http api with prometheus metrics",
		Long: `Starts a small http server exposing the registered checks:

    GET /api/v1/checks          list of registered checks
    GET /api/v1/check/<name>    run a check, args as query parameters
    GET /metrics                prometheus metrics

The listen address comes from the listener section of the config file.`,
		Run: func(_ *cobra.Command, _ []string) {
			snc := newAgent()
			listener := monplug.NewWebServer(snc)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := listener.Shutdown(ctx); err != nil {
					os.Exit(1)
				}
			}()

			if err := listener.Serve(); err != nil {
				os.Exit(1)
			}
		},
	}
	rootCmd.AddCommand(serverCmd)
}
