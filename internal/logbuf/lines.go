package logbuf

import "bytes"

// MaxLineLen caps how much of an unterminated line is held. Longer lines are
// emitted in pieces of this size.
const MaxLineLen = 64 << 10

// lineSplitter turns a byte stream into lines, holding at most MaxLineLen
// bytes of an incomplete line between writes.
type lineSplitter struct {
	partial []byte
}

// split calls emit for every complete line in p, without its newline.
func (s *lineSplitter) split(p []byte, emit func(line []byte)) {
	data := append(s.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		emit(data[:i])
		data = data[i+1:]
	}
	for len(data) >= MaxLineLen {
		emit(data[:MaxLineLen])
		data = data[MaxLineLen:]
	}
	s.partial = append(s.partial[:0:0], data...)
}

// rest returns and clears the held partial line.
func (s *lineSplitter) rest() []byte {
	out := s.partial
	s.partial = nil
	return out
}
