package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/HerbHall/newslens/internal/config"
	"github.com/HerbHall/newslens/internal/store"
)

// runReset deletes the persisted snapshot so the next start falls back
// to the seed data.
func runReset(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configFile := fs.String("config", "", "path to configuration file")
	yes := fs.Bool("yes", false, "confirm deleting the snapshot")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if !*yes {
		fmt.Fprintln(os.Stderr, "error: reset deletes all stored users and history; pass --yes to confirm")
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

	if err := blobs.Delete(ctx, store.SnapshotBlobName); err != nil {
		fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Snapshot deleted; seed data will be used on next start.")
}
