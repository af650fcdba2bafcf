package proto

import "strings"

// Interpreter accumulates inbound bytes into command lines with a hard
// length bound. Two states: accumulating, and discarding an overlong line
// until its terminator (overflow). The buffer never exceeds the bound; the
// byte that would exceed it is dropped, not appended.
type Interpreter struct {
	maxLen   int
	buf      []byte
	overflow bool
}

// NewInterpreter creates an interpreter accepting lines up to maxLen bytes.
func NewInterpreter(maxLen int) *Interpreter {
	return &Interpreter{
		maxLen: maxLen,
		buf:    make([]byte, 0, maxLen),
	}
}

// Feed consumes one inbound byte. On a line terminator it returns the
// trimmed completed line with done=true, or done=true and overflowed=true
// when the line exceeded the bound (the line content is lost). Either way
// the interpreter is reset to a clean buffer. Empty and whitespace-only
// lines complete with an empty line string; callers skip them.
func (i *Interpreter) Feed(b byte) (line string, done bool, overflowed bool) {
	if b == '\r' || b == '\n' {
		over := i.overflow
		if !over {
			line = strings.TrimSpace(string(i.buf))
		}
		i.buf = i.buf[:0]
		i.overflow = false
		return line, true, over
	}

	if i.overflow {
		return "", false, false
	}
	if len(i.buf) < i.maxLen {
		i.buf = append(i.buf, b)
	} else {
		i.overflow = true
	}
	return "", false, false
}

// Pending returns the number of bytes currently buffered.
func (i *Interpreter) Pending() int {
	return len(i.buf)
}
