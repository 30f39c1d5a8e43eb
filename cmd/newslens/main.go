package main

import (
	"fmt"
	"os"

	"github.com/HerbHall/newslens/internal/version"
)

const usage = `usage: newslens <command> [flags]

commands:
  serve     run the API server (default)
  search    run one search and record it in a user's history
  backup    archive the store snapshot and config
  restore   restore a backup archive
  reset     delete the persisted snapshot
  version   print version information
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "search":
		runSearch(args)
	case "backup":
		runBackup(args)
	case "restore":
		runRestore(args)
	case "reset":
		runReset(args)
	case "version":
		fmt.Println(version.Info())
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}
