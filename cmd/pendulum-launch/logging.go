package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// setupLogging installs the default logger: text on a terminal, JSON
// otherwise. Every record carries the run id of this invocation.
func setupLogging(w io.Writer, verbose bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler).With("run", uuid.NewString()))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
