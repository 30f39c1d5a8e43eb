package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/HerbHall/newslens/internal/backup"
	"github.com/HerbHall/newslens/internal/config"
)

func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	input := fs.String("input", "", "backup archive to restore (required)")
	configFile := fs.String("config", "", "path to configuration file")
	configDir := fs.String("config-dir", "", "directory to restore the archived config file into")
	force := fs.Bool("force", false, "overwrite existing data")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "error: --input is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	blobs, closeBlobs, err := openBlobs(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening store: %v\n", err)
		os.Exit(1)
	}
	defer closeBlobs()

	if err := backup.Restore(ctx, *input, blobs, *configDir, *force); err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Restored from: %s\n", *input)
}
