package logbuf

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter writes each complete line to the underlying writer with a
// fixed prefix. Incomplete lines are held until their newline arrives or
// Flush is called; lines longer than MaxLineLen are broken up.
type PrefixWriter struct {
	mu     sync.Mutex
	prefix []byte
	w      io.Writer
	lines  lineSplitter
}

// NewPrefixWriter returns a writer that prefixes lines with "[name] ".
func NewPrefixWriter(name string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{prefix: []byte("[" + name + "] "), w: w}
}

// Write implements io.Writer.
func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	var out bytes.Buffer
	pw.lines.split(p, func(line []byte) {
		out.Write(pw.prefix)
		out.Write(line)
		out.WriteByte('\n')
	})

	if out.Len() > 0 {
		if _, err := pw.w.Write(out.Bytes()); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes any held partial line, terminated with a newline.
func (pw *PrefixWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	rest := pw.lines.rest()
	if len(rest) == 0 {
		return nil
	}
	line := append(append(append([]byte{}, pw.prefix...), rest...), '\n')
	_, err := pw.w.Write(line)
	return err
}
