// pm is the command-line front end for procedure machine programs.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/procmachine/config"
	"github.com/chazu/procmachine/lsp"
)

const version = "0.1.0"

func main() {
	verbosity := flag.Int("v", -1, "Log verbosity (overrides procmachine.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pm [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Runs, grades and debugs procedure machine programs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  run [-input v,...] [-break] file   Run a program and print its result\n")
		fmt.Fprintf(os.Stderr, "  grade -puzzle key [-server] file   Grade a program against a puzzle\n")
		fmt.Fprintf(os.Stderr, "  debug [-input v,...] file          Step through a program interactively\n")
		fmt.Fprintf(os.Stderr, "  fmt file                           Print a program in canonical form\n")
		fmt.Fprintf(os.Stderr, "  save -name n file                  Store a program in the workspace\n")
		fmt.Fprintf(os.Stderr, "  load -name n                       Print a stored program\n")
		fmt.Fprintf(os.Stderr, "  puzzles                            List puzzle keys\n")
		fmt.Fprintf(os.Stderr, "  lsp                                Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pm run -input 5,3 add.pm\n")
		fmt.Fprintf(os.Stderr, "  pm grade -puzzle caesar caesar.pm\n")
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", config.FileName, err)
		os.Exit(1)
	}
	configureLogging(cfg, *verbosity)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		handleRunCommand(cfg, rest)
	case "grade":
		handleGradeCommand(cfg, rest)
	case "debug":
		handleDebugCommand(cfg, rest)
	case "fmt":
		handleFmtCommand(rest)
	case "save":
		handleSaveCommand(cfg, rest)
	case "load":
		handleLoadCommand(cfg, rest)
	case "puzzles":
		handlePuzzlesCommand(cfg)
	case "lsp":
		if err := lsp.New(version).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Language server error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

// configureLogging sends logs to the configured file, or stderr when none
// is set. A non-negative flag value wins over the file.
func configureLogging(cfg *config.Config, flagVerbosity int) {
	v := cfg.Log.Verbosity
	if flagVerbosity >= 0 {
		v = flagVerbosity
	}
	var path *string
	if f := cfg.LogFile(); f != "" {
		path = &f
	}
	commonlog.Configure(v, path)
}

// fail prints err and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
