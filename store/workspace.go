package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/procmachine/extjson"
	"github.com/chazu/procmachine/machine"
)

const (
	procsPrefix = "procs/"
	entryPrefix = "entry/"
)

// Workspace saves and loads named programs on a KV. Procedures and the
// entry id are stored under separate keys, both extjson-encoded.
type Workspace struct {
	kv KV
}

// NewWorkspace wraps kv.
func NewWorkspace(kv KV) *Workspace {
	return &Workspace{kv: kv}
}

// Save stores pr under name, replacing any earlier version.
func (w *Workspace) Save(ctx context.Context, name string, pr *machine.Program) error {
	if name == "" {
		return errors.New("store: empty program name")
	}
	procs, err := extjson.Marshal(pr.Procs)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", name, err)
	}
	entry, err := extjson.Marshal(pr.Entry)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", name, err)
	}
	if err := w.kv.Set(ctx, procsPrefix+name, procs); err != nil {
		return err
	}
	return w.kv.Set(ctx, entryPrefix+name, entry)
}

// Load reads the program saved under name. A missing program reports
// ErrNotFound.
func (w *Workspace) Load(ctx context.Context, name string) (*machine.Program, error) {
	procsData, err := w.kv.Get(ctx, procsPrefix+name)
	if err != nil {
		return nil, err
	}
	entryData, err := w.kv.Get(ctx, entryPrefix+name)
	if err != nil {
		return nil, err
	}
	pr := machine.NewProgram()
	if err := extjson.Unmarshal(procsData, &pr.Procs); err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", name, err)
	}
	if pr.Procs == nil {
		pr.Procs = make(map[machine.ProcID]*machine.Procedure)
	}
	if err := extjson.Unmarshal(entryData, &pr.Entry); err != nil {
		return nil, fmt.Errorf("store: decoding %s: %w", name, err)
	}
	return pr, nil
}

// Delete removes the program saved under name.
func (w *Workspace) Delete(ctx context.Context, name string) error {
	if err := w.kv.Delete(ctx, procsPrefix+name); err != nil {
		return err
	}
	return w.kv.Delete(ctx, entryPrefix+name)
}

// Names lists saved programs.
func (w *Workspace) Names(ctx context.Context) ([]string, error) {
	keys, err := w.kv.Keys(ctx, procsPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, procsPrefix)
	}
	return names, nil
}
