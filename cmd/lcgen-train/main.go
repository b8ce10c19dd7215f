// Command lcgen-train trains a masked light-curve reconstruction model.
//
//	lcgen-train --input curves.h5 --output-dir out --epochs 50 --progress
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses argv, trains, and returns the process exit code.
func run(argv []string, stdout, stderr io.Writer) int {
	args := defaultArgs()
	p, err := arg.NewParser(arg.Config{Program: filepath.Base(os.Args[0])}, &args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	switch err := p.Parse(argv); {
	case err == arg.ErrHelp:
		p.WriteHelp(stdout)
		return 0
	case err != nil:
		p.WriteUsage(stderr)
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	if err := args.validate(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return exitCode(err)
	}
	logger := newLogger(args, stderr)
	log.SetLogger(logger)

	if _, err := execute(args, logger); err != nil {
		logger.Error("Training failed", err)
		return exitCode(err)
	}
	return 0
}

func newLogger(a Args, w io.Writer) log.Logger {
	level, _ := log.ParseLevel(a.LogLevel)
	if a.LogBackend == "slog" {
		return log.NewSlogLogger(log.SetupLoggerTo(w, a.LogLevel))
	}
	return log.NewZerologLogger(w, log.Format(a.LogFormat), level)
}

// exitCode maps failure classes to distinct codes so wrappers can tell bad
// input from lost checkpoints and diverged runs.
func exitCode(err error) int {
	var (
		verr *errors.ValidationError
		cerr *errors.CheckpointError
		nerr *errors.NumericalInstabilityError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &verr):
		return 2
	case errors.As(err, &cerr):
		return 3
	case errors.As(err, &nerr):
		return 4
	default:
		return 1
	}
}
