package main

import (
	"fmt"
	"os"

	"github.com/fieldops/netdiscover/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "stop":
		cmdStop()
	case "status":
		cmdStatus()
	case "keys":
		cmdKeys(os.Args[2:])
	case "init-config":
		cmdInitConfig()
	case "install-service":
		cmdInstallService()
	case "uninstall-service":
		cmdUninstallService()
	case "config-export":
		cmdConfigExport(os.Args[2:])
	case "config-import":
		cmdConfigImport(os.Args[2:])
	case "redactions":
		cmdRedactions(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	case "run-show":
		cmdRunShow(os.Args[2:])
	case "run-stats":
		cmdRunStats(os.Args[2:])
	case "archive":
		cmdArchive(os.Args[2:])
	case "reset-budget":
		cmdResetBudget(os.Args[2:])
	case "version":
		fmt.Println(version.String())
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: netdiscover <command> [options]

Commands:
  run               Run one discovery scan
  stop              Stop a running scan
  status            Show whether an instance is running
  keys              Manage credential secrets (list|set|delete <name>)
  init-config       Generate default config file
  config-export     Export current config to a TOML file
  config-import     Import config from a TOML file
  redactions        List recently redacted asset fields [limit] [offset]
  runs              List recent scan runs [limit] [offset]
  run-show          Show full detail for one scan run: <run-id>
  run-stats         Show aggregate scan run statistics [duration]
  archive           Archive an asset: <asset-id> <reason>
  reset-budget      Reset a scan budget period: <period> <period-start>
  install-service   Install as system service (launchd on macOS)
  uninstall-service Remove the installed system service
  version           Print version information
  help              Show this help message

Options:
  --foreground      Run in foreground, logging to stdout as well as the log file

Exit codes:
  0  scan completed
  2  invalid configuration
  3  every target was unreachable
  4  storage unavailable at start`)
}
