package main

import (
	"os"

	"github.com/croxen/monplug/pkg/monplug"
	"github.com/croxen/monplug/pkg/monplug/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(int(monplug.CheckExitUnknown))
	}
}
