package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/procmachine/asm"
	"github.com/chazu/procmachine/config"
	"github.com/chazu/procmachine/store"
)

// openWorkspace opens the configured database. The CLI has no use for an
// in-memory store, so an unset path is an error here.
func openWorkspace(cfg *config.Config) (*store.Workspace, store.KV, error) {
	path := cfg.StorePath()
	if path == "" {
		return nil, nil, fmt.Errorf("no [store] path set in %s", config.FileName)
	}
	kv, err := store.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return store.NewWorkspace(kv), kv, nil
}

func handleSaveCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	name := fs.String("name", "", "Name to save the program under")
	fs.Parse(args)
	if *name == "" || fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pm save -name n file")
		os.Exit(1)
	}

	pr, err := readProgram(fs.Arg(0))
	if err != nil {
		fail("Error: %v", err)
	}
	ws, kv, err := openWorkspace(cfg)
	if err != nil {
		fail("Error: %v", err)
	}
	defer kv.Close()

	if err := ws.Save(context.Background(), *name, pr); err != nil {
		fail("Error: %v", err)
	}
	fmt.Printf("Saved %s\n", *name)
}

// handleLoadCommand prints a saved program, or lists saved names when no
// name is given.
func handleLoadCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	name := fs.String("name", "", "Name of the saved program")
	fs.Parse(args)
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "Usage: pm load [-name n]")
		os.Exit(1)
	}

	ws, kv, err := openWorkspace(cfg)
	if err != nil {
		fail("Error: %v", err)
	}
	defer kv.Close()
	ctx := context.Background()

	if *name == "" {
		names, err := ws.Names(ctx)
		if err != nil {
			fail("Error: %v", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	pr, err := ws.Load(ctx, *name)
	if errors.Is(err, store.ErrNotFound) {
		fail("No program saved as %q", *name)
	}
	if err != nil {
		fail("Error: %v", err)
	}
	fmt.Print(asm.Format(pr))
}
