// Command vaultctl runs maintenance tasks against the VaultEstim stores:
// schema migrations, catalog syncs, duplicate reports, completion and
// charts, and collection backups.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vaultestim/vaultestim/internal/version"
)

var configPath = flag.String("config", "", "Config file (default: ~/.vaultestim/config.toml)")

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		runMigrationCommand(args[1:])
	case "sync":
		runSyncCommand(args[1:])
	case "duplicates", "dups":
		runDuplicatesCommand(args[1:])
	case "progress":
		runProgressCommand(args[1:])
	case "chart":
		runChartCommand(args[1:])
	case "backup":
		runBackupCommand(args[1:])
	case "version":
		fmt.Printf("vaultctl %s\n", version.String())
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("VaultEstim maintenance tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vaultctl [-config path] <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate up|down|status          Apply or inspect database migrations")
	fmt.Println("  sync [-set id] [-reset]         Resync the local card cache")
	fmt.Println("  duplicates -user id [-mode rows|quantity] [-merge]")
	fmt.Println("                                  Report or merge duplicate collection rows")
	fmt.Println("  progress -user id [-set id] [-mode base|masterset]")
	fmt.Println("                                  Show set completion")
	fmt.Println("  chart -user id -out file [-mode base|masterset] [-open]")
	fmt.Println("                                  Render the completion chart as HTML")
	fmt.Println("  backup create|list -user id     Export or list collection backups")
	fmt.Println("  backup all                      Export every collection")
	fmt.Println("  version                         Print the build version")
	fmt.Println()
}
