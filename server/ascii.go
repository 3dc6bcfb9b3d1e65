package server

import (
	"bufio"
	"io"
)

// crlfReader converts bare LF to CRLF for TYPE A downloads. CRLF pairs
// already present in the file pass through unchanged.
type crlfReader struct {
	r         *bufio.Reader
	prevCR    bool
	pendingLF bool
}

func newCRLFReader(r io.Reader) *crlfReader {
	return &crlfReader{r: bufio.NewReader(r)}
}

func (c *crlfReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if c.pendingLF {
			p[n] = '\n'
			n++
			c.pendingLF = false
			c.prevCR = false
			continue
		}
		// Don't block for more input once something is ready to return.
		if n > 0 && c.r.Buffered() == 0 {
			break
		}
		b, err := c.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if b == '\n' && !c.prevCR {
			p[n] = '\r'
			n++
			c.pendingLF = true
			continue
		}
		p[n] = b
		n++
		c.prevCR = b == '\r'
	}
	return n, nil
}

// lfReader converts CRLF to LF for TYPE A uploads. A CR not followed by
// LF is kept.
type lfReader struct {
	r *bufio.Reader
}

func newLFReader(r io.Reader) *lfReader {
	return &lfReader{r: bufio.NewReader(r)}
}

func (l *lfReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if n > 0 && l.r.Buffered() == 0 {
			break
		}
		b, err := l.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if b == '\r' {
			if next, err := l.r.Peek(1); err == nil && next[0] == '\n' {
				continue
			}
		}
		p[n] = b
		n++
	}
	return n, nil
}
