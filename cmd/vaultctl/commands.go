package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/vaultestim/vaultestim/internal/charts"
	"github.com/vaultestim/vaultestim/internal/collection"
	"github.com/vaultestim/vaultestim/internal/progress"
	"github.com/vaultestim/vaultestim/internal/storage"
	"github.com/vaultestim/vaultestim/internal/vault"
)

const commandTimeout = 10 * time.Minute

func runMigrationCommand(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: vaultctl migrate up|down|status")
		os.Exit(1)
	}

	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	cfg := loadConfig()
	db := openDB(ctx, cfg, false)
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()
	mgr := storage.NewMigrationManager(db.Conn())

	switch args[0] {
	case "up":
		fmt.Println("Applying all pending migrations...")
		if err := mgr.Up(ctx); err != nil {
			log.Fatalf("Error applying migrations: %v", err)
		}
	case "down":
		fmt.Println("Rolling back last migration...")
		if err := mgr.Down(ctx); err != nil {
			log.Fatalf("Error rolling back migration: %v", err)
		}
	case "status", "version":
	default:
		log.Fatalf("Unknown migrate command: %s", args[0])
	}

	version, err := mgr.Version(ctx)
	if err != nil {
		log.Fatalf("Error getting version: %v", err)
	}
	fmt.Printf("Current version: %d\n", version)
}

func runSyncCommand(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	setID := fs.String("set", "", "Refresh a single set instead of the whole catalog")
	reset := fs.Bool("reset", false, "Drop the stored catalog before syncing")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	e := openEnv(ctx, false)
	defer e.close()

	if *reset {
		if err := e.cache.Invalidate(ctx); err != nil {
			log.Fatalf("Error dropping cache: %v", err)
		}
	}

	if *setID != "" {
		fmt.Printf("Refreshing set %s...\n", *setID)
		if err := e.cache.RefreshSet(ctx, *setID); err != nil {
			log.Fatalf("Error refreshing set: %v", err)
		}
	} else {
		fmt.Println("Resyncing the card catalog...")
		if err := e.cache.Resync(ctx); err != nil {
			log.Fatalf("Error syncing catalog: %v", err)
		}
	}

	stats, err := e.cache.Stats(ctx)
	if err != nil {
		log.Fatalf("Error reading cache stats: %v", err)
	}
	fmt.Printf("Cache %s: %d sets, %d cards\n", stats.CacheVersion, stats.SetCount, stats.CardCount)
}

func runDuplicatesCommand(args []string) {
	fs := flag.NewFlagSet("duplicates", flag.ExitOnError)
	userID := fs.String("user", "", "User id (required)")
	modeFlag := fs.String("mode", "rows", "Detection mode: rows or quantity")
	merge := fs.Bool("merge", false, "Merge every group of duplicate rows")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *userID == "" {
		log.Fatal("Error: -user is required")
	}
	mode, err := collection.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	e := openEnv(ctx, true)
	defer e.close()
	facade := vault.NewCollectionFacade(e.services())

	if *merge {
		result, err := facade.MergeDuplicates(ctx, *userID)
		if err != nil {
			log.Fatalf("Error merging duplicates: %v", err)
		}
		fmt.Printf("Merged %d groups, removed %d rows\n", result.Groups, result.Removed)
		return
	}

	groups, err := facade.Duplicates(ctx, *userID, mode)
	if err != nil {
		log.Fatalf("Error finding duplicates: %v", err)
	}
	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return
	}
	for _, g := range groups {
		fmt.Printf("%-20s %-16s qty=%-3d rows=%v\n", g.Key.CardID, g.Key.Version, g.Quantity, g.RowIDs)
	}
	fmt.Printf("\n%d duplicate groups\n", len(groups))
}

func runProgressCommand(args []string) {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	userID := fs.String("user", "", "User id (required)")
	setID := fs.String("set", "", "Set id (default: every started set)")
	modeFlag := fs.String("mode", "base", "Completion mode: base or masterset")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *userID == "" {
		log.Fatal("Error: -user is required")
	}
	mode, err := progress.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	e := openEnv(ctx, true)
	defer e.close()
	facade := vault.NewProgressFacade(e.services())

	if *setID != "" {
		res, err := facade.Set(ctx, *userID, *setID, mode)
		if err != nil {
			log.Fatalf("Error computing progress: %v", err)
		}
		printResult(res)

		rarities, err := facade.Rarity(ctx, *userID, *setID, mode)
		if err != nil {
			log.Fatalf("Error computing rarity progress: %v", err)
		}
		for _, r := range rarities {
			fmt.Printf("  %-24s %4d / %-4d %3d%%\n", r.Rarity, r.Owned, r.Total, r.Percentage)
		}
		return
	}

	results, err := facade.Started(ctx, *userID, mode)
	if err != nil {
		log.Fatalf("Error computing progress: %v", err)
	}
	if len(results) == 0 {
		fmt.Println("No started sets.")
		return
	}
	for _, res := range results {
		printResult(res)
	}
}

func printResult(res progress.Result) {
	fmt.Printf("%-10s %-36s %4d / %-4d %3d%% (%s)\n", res.SetID, res.SetName, res.Owned, res.Total, res.Percentage, res.Mode)
}

func runChartCommand(args []string) {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	userID := fs.String("user", "", "User id (required)")
	out := fs.String("out", "completion.html", "Output HTML file")
	modeFlag := fs.String("mode", "base", "Completion mode: base or masterset")
	open := fs.Bool("open", false, "Open the chart in the default browser")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}
	if *userID == "" {
		log.Fatal("Error: -user is required")
	}
	mode, err := progress.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	e := openEnv(ctx, true)
	defer e.close()
	facade := vault.NewProgressFacade(e.services())

	var buf bytes.Buffer
	if err := facade.Chart(ctx, &buf, *userID, mode); err != nil {
		log.Fatalf("Error rendering chart: %v", err)
	}
	err = charts.RenderFile(*out, func(w io.Writer) error {
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		log.Fatalf("Error writing chart: %v", err)
	}
	fmt.Printf("Chart written to %s\n", *out)

	if *open {
		if err := charts.OpenInBrowser(*out); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	}
}

func runBackupCommand(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: vaultctl backup create|list -user id | backup all")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	userID := fs.String("user", "", "User id")
	if err := fs.Parse(args[1:]); err != nil {
		log.Fatalf("Error parsing flags: %v", err)
	}

	ctx, cancel := commandContext(commandTimeout)
	defer cancel()

	e := openEnv(ctx, true)
	defer e.close()
	mgr := e.backupManager(ctx)

	switch args[0] {
	case "create":
		info, err := mgr.Backup(ctx, *userID)
		if err != nil {
			log.Fatalf("Error creating backup: %v", err)
		}
		fmt.Printf("Backup created: %s (%d entries, %d bytes)\n", info.Key, info.Entries, info.Size)

	case "list", "ls":
		objects, err := mgr.List(ctx, *userID)
		if err != nil {
			log.Fatalf("Error listing backups: %v", err)
		}
		if len(objects) == 0 {
			fmt.Println("No backups found.")
			return
		}
		for _, o := range objects {
			fmt.Printf("%s  %8d  %s\n", o.LastModified.Format(time.RFC3339), o.Size, o.Key)
		}

	case "all":
		n, err := mgr.BackupAll(ctx)
		fmt.Printf("Backed up %d collections\n", n)
		if err != nil {
			log.Fatalf("Error during backup: %v", err)
		}

	default:
		log.Fatalf("Unknown backup command: %s", args[0])
	}
}
