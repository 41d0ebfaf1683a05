// Command pgseal seals files into OpenPGP messages.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/pgseal/pgseal/internal/commands"
)

// version is set at build time.
var version = "dev"

func main() {
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	if err := commands.NewRootCommand(version).Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
