// Package main implements the openclaw-mem CLI: a local-first
// long-term memory sidecar for an LLM agent runtime.
//
// Usage:
//
//	openclaw-mem status
//	openclaw-mem ingest --file <path>
//	openclaw-mem harvest [--embed]
//	openclaw-mem search <query>
//	openclaw-mem vsearch --query-vector-file <path>
//	openclaw-mem hybrid <query>
//	openclaw-mem timeline <id>...
//	openclaw-mem get <id>...
//	openclaw-mem store <text>
//	openclaw-mem pack --query <q>
//	openclaw-mem triage --mode heartbeat
//	openclaw-mem export --to <path> --yes
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/openclaw/openclaw-mem/internal/config"
)

// globalFlags holds the flags every subcommand shares.
type globalFlags struct {
	DB       string
	JSON     bool
	NoColor  bool
	LogLevel string
}

func configureLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("openclaw-mem", flag.ContinueOnError)
	fs.Usage = printUsage
	dbPath := fs.String("db", "", "path to the ledger database (default: config general.state_db)")
	jsonOut := fs.Bool("json", false, "emit machine-readable JSON on stdout")
	noColor := fs.Bool("no-color", false, "disable color output")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	cfgPath := fs.String("config", "", "path to TOML config file (default: built-in defaults)")

	// Stop parsing at the first non-flag argument so subcommand-local
	// flags (e.g. "search foo --limit 5") pass through untouched.
	fs.SetInterspersed(false)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	color.NoColor = *noColor || !isatty.IsTerminal(os.Stdout.Fd())

	logger := configureLogger(*logLevel)
	slog.SetDefault(logger)

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", *cfgPath, "error", err)
			return 1
		}
		cfg = loaded
	}

	globals := globalFlags{
		DB:       firstNonEmpty(*dbPath, cfg.General.StateDB),
		JSON:     *jsonOut,
		NoColor:  *noColor,
		LogLevel: *logLevel,
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage()
		return 1
	}

	cmdName, cmdArgs := rest[0], rest[1:]

	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "openclaw-mem: unknown command %q\n", cmdName)
		printUsage()
		return 1
	}
	return cmd(cmdArgs, globals, cfg)
}

type commandFunc func(args []string, globals globalFlags, cfg *config.Config) int

var commands = map[string]commandFunc{
	"status":   runStatus,
	"ingest":   runIngest,
	"harvest":  runHarvest,
	"search":   runSearch,
	"vsearch":  runVSearch,
	"hybrid":   runHybrid,
	"timeline": runTimeline,
	"get":      runGet,
	"store":    runStore,
	"pack":     runPack,
	"triage":   runTriage,
	"export":   runExport,
	"graph":    runGraph,
}

func printUsage() {
	fmt.Fprint(os.Stderr, `openclaw-mem - local-first long-term memory sidecar

Usage:
  openclaw-mem <command> [options]

Commands:
  status                 Print ledger stats, embedding counts, last ingest
  ingest --file <path>    Batch insert from a JSONL capture stream
  harvest [--embed]       Ingest then optionally embed newly inserted rows
  search <query>          FTS-only recall
  vsearch --query-vector-file <path>|--query-vector-json <json>
                          Raw vector search
  hybrid <query>          Full hybrid recall (FTS + vector, fused)
  timeline <id>...        +/- window around each id
  get <id>...             Full row(s) by id
  store <text>            Explicit write
  pack --query <q>        Context bundle assembly + optional trace
  triage --mode <mode>    heartbeat|cron-errors|tasks; exit 0 or 10
  export --to <path> --yes
                          Dump observations to a file
  graph capture-git --repo <dir>
  graph capture-md --root <dir>
                          Periodic index-only capture jobs

Global flags:
  --db <path>     Ledger database path
  --json          Machine-readable JSON on stdout
  --no-color      Disable color output (honors NO_COLOR)
  --log-level     debug|info|warn|error
  --config        Path to a TOML config file
`)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
