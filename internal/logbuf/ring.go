// Package logbuf holds line-oriented writers for child process output.
package logbuf

import (
	"bytes"
	"io"
	"sync"
)

// Ring keeps the last N complete lines written to it. It is safe for
// concurrent use and never returns a write error.
type Ring struct {
	mu       sync.Mutex
	lines    []string
	size     int
	pos      int
	full     bool
	splitter lineSplitter
}

// New creates a ring buffer that stores the last n lines.
func New(n int) *Ring {
	if n <= 0 {
		n = 1
	}
	return &Ring{
		lines: make([]string, n),
		size:  n,
	}
}

// Write implements io.Writer.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.splitter.split(p, r.add)
	return len(p), nil
}

// Stream returns a writer that feeds complete lines into the ring while
// holding its own partial line, so several streams can share one ring
// without their unterminated output being joined.
func (r *Ring) Stream() io.Writer {
	return &ringStream{r: r}
}

type ringStream struct {
	r     *Ring
	lines lineSplitter
}

func (s *ringStream) Write(p []byte) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.lines.split(p, s.r.add)
	return len(p), nil
}

func (r *Ring) add(b []byte) {
	line := string(bytes.TrimRight(b, "\r"))
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % r.size
	if r.pos == 0 {
		r.full = true
	}
}

// Lines returns all stored lines, oldest first. A trailing line without a
// newline is not included.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]string, r.pos)
		copy(out, r.lines[:r.pos])
		return out
	}

	out := make([]string, r.size)
	copy(out, r.lines[r.pos:])
	copy(out[r.size-r.pos:], r.lines[:r.pos])
	return out
}

// Last returns the last n lines. If fewer lines exist, returns all of them.
func (r *Ring) Last(n int) []string {
	all := r.Lines()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
