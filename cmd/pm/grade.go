package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/procmachine/config"
	"github.com/chazu/procmachine/puzzles"
	"github.com/chazu/procmachine/worker"
)

// loadRegistry returns the built-in puzzles plus any case files from the
// configured directory.
func loadRegistry(cfg *config.Config) (*puzzles.Registry, error) {
	reg := puzzles.NewRegistry()
	if dir := cfg.PuzzleDir(); dir != "" {
		if err := reg.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func handleGradeCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("grade", flag.ExitOnError)
	key := fs.String("puzzle", "", "Puzzle key")
	server := fs.Bool("server", false, "Run the server-side case count")
	fs.Parse(args)
	if *key == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: pm grade -puzzle key [-server] file...")
		os.Exit(1)
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		fail("Error loading puzzles: %v", err)
	}
	if _, ok := reg.Lookup(*key); !ok {
		fail("Unknown puzzle %q (have %s)", *key, strings.Join(reg.Keys(), ", "))
	}
	policy, err := cfg.Policy()
	if err != nil {
		fail("Error: %v", err)
	}
	alpha, err := cfg.AlphabetTable()
	if err != nil {
		fail("Error: %v", err)
	}

	cases := cfg.Harness.Cases
	if *server {
		cases = cfg.Harness.ServerCases
	}
	reqs := make([]worker.Request, 0, fs.NArg())
	for _, path := range fs.Args() {
		pr, err := readProgram(path)
		if err != nil {
			fail("Error: %v", err)
		}
		reqs = append(reqs, worker.Request{
			ID:     path,
			Puzzle: *key,
			Entry:  pr.Entry,
			Procs:  pr.Procs,
			Cases:  cases,
		})
	}

	pool := worker.NewPool(cfg.Harness.Workers, reg, worker.Options{
		Timeout:  cfg.Harness.Timeout.Duration,
		Policy:   policy,
		Alphabet: alpha,
	})
	defer pool.Stop()

	resps, err := pool.GradeAll(context.Background(), reqs)
	if err != nil {
		fail("Error: %v", err)
	}
	failed := false
	for i, resp := range resps {
		prefix := ""
		if len(resps) > 1 {
			prefix = reqs[i].ID + ": "
		}
		if resp.Error != "" {
			fmt.Printf("%serror: %s\n", prefix, resp.Error)
			failed = true
			continue
		}
		fmt.Printf("%s%s\n", prefix, resp.Verdict)
	}
	if failed {
		os.Exit(1)
	}
}

func handlePuzzlesCommand(cfg *config.Config) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		fail("Error loading puzzles: %v", err)
	}
	for _, key := range reg.Keys() {
		p, _ := reg.Lookup(key)
		fmt.Printf("%-12s %s\n", key, strings.Join(p.Schema(), ", "))
	}
}
