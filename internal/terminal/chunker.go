package terminal

import "unicode/utf8"

// utf8Chunker turns arbitrary byte reads into valid UTF-8 text. A rune split
// across reads is held back (at most utf8.UTFMax-1 bytes) until it completes.
// Bytes that can never start a valid rune are replaced with U+FFFD.
type utf8Chunker struct {
	pending []byte
}

// Push returns the longest complete prefix of pending+data as a string.
func (c *utf8Chunker) Push(data []byte) string {
	if len(data) == 0 && len(c.pending) == 0 {
		return ""
	}
	buf := append(c.pending, data...)
	c.pending = nil

	out := make([]byte, 0, len(buf))
	for i := 0; i < len(buf); {
		if !utf8.FullRune(buf[i:]) {
			c.pending = append(c.pending, buf[i:]...)
			break
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size == 1 {
			out = utf8.AppendRune(out, utf8.RuneError)
			i++
			continue
		}
		out = append(out, buf[i:i+size]...)
		i += size
	}
	return string(out)
}

// Flush drains an incomplete trailing rune at end of stream.
func (c *utf8Chunker) Flush() string {
	if len(c.pending) == 0 {
		return ""
	}
	c.pending = nil
	return string(utf8.RuneError)
}

func (c *utf8Chunker) Pending() int {
	return len(c.pending)
}
