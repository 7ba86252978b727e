package main

import (
	"fmt"
	"os"

	"github.com/dyluth/backend/cmd/backend/commands"

	// Installed apps: imported for their task registrations
	_ "github.com/dyluth/backend/internal/apps/core"
	_ "github.com/dyluth/backend/internal/apps/notifications"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
