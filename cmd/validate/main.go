package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
)

const usage = `Usage:
  %[1]s                       validate the built-in tables
  %[1]s templates <file.yaml> validate an event template table
  %[1]s enemies <file.yaml>   validate an enemy table
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, usage, filepath.Base(os.Args[0]))
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("bad arguments")

func run(args []string, out io.Writer) error {
	switch len(args) {
	case 0:
		// Both loaders panic on bad embedded data.
		warnCoverage(out, events.DefaultTemplates())
		fmt.Fprintf(out, "Built-in tables are valid (%d enemy types)\n", len(combat.DefaultEnemyTable()))
		return nil
	case 2:
	default:
		return errUsage
	}

	kind, filename := strings.ToLower(args[0]), args[1]
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("file must have .yaml extension: %s", filepath.Base(filename))
	}

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		_ = f.Close()
	}()

	fmt.Fprintf(out, "Validating %s...\n", filename)
	switch kind {
	case "templates":
		ts, err := events.LoadTemplates(f)
		if err != nil {
			return err
		}
		warnCoverage(out, ts)
		fmt.Fprintf(out, "Template file is valid! (%d templates)\n", len(ts))
	case "enemies":
		t, err := combat.LoadEnemyTable(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Enemy file is valid! (%s)\n", strings.Join(t.Types(), ", "))
	default:
		return errUsage
	}
	return nil
}

// warnCoverage reports type and difficulty pairs with no template. Selection
// still works for them by falling back to any difficulty of the type.
func warnCoverage(out io.Writer, ts []events.Template) {
	have := make(map[string]bool)
	for _, t := range ts {
		have[string(t.Type)+"/"+string(t.Difficulty)] = true
	}
	for _, typ := range []events.Type{events.TypeNormal, events.TypeCombat} {
		for _, d := range []events.Difficulty{events.Easy, events.Medium, events.Hard} {
			if !have[string(typ)+"/"+string(d)] {
				fmt.Fprintf(out, "warning: no %s templates at %s difficulty\n", typ, d)
			}
		}
	}
}
