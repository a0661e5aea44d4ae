// Command roster-import loads students from an .xls roster export.
//
// Usage:
//
//	roster-import -file santri.xls [-actor admin-id]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"pesantren/internal/cli"
	"pesantren/internal/log"
	"pesantren/internal/roster"
)

func main() {
	file := flag.String("file", "", "path to the .xls roster")
	actor := flag.String("actor", "roster-import", "user id recorded on the activity log")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: roster-import -file <roster.xls> [-actor <user id>]")
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRoster)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	store, closeStore := cli.OpenStore(ctx, logger, cfg)
	defer closeStore()

	app := cli.NewApp(store, cfg, nil, logger)
	summary, err := roster.NewImporter(app.Directory, logger.Logger).ImportFile(ctx, *actor, *file)
	if err != nil {
		logger.Error("Roster import failed", log.FieldError, err.Error(), "file", *file)
		closeStore()
		os.Exit(1)
	}

	fmt.Println(summary)
	for _, nim := range summary.Duplicates {
		fmt.Printf("  duplicate NIM %s\n", nim)
	}
	for _, rowErr := range summary.Invalid {
		fmt.Printf("  %v\n", rowErr)
	}
}
