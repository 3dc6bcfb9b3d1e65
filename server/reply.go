package server

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

// errLineTooLong is returned by readLine for lines over MaxCommandLength.
var errLineTooLong = errors.New("command too long")

const (
	telnetIAC  = 0xFF
	telnetWILL = 0xFB
	telnetWONT = 0xFC
	telnetDO   = 0xFD
	telnetDONT = 0xFE
)

// formatReply renders a single-line reply: "<code> <message>\r\n".
func formatReply(code int, message string) []byte {
	b := make([]byte, 0, len(message)+6)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, ' ')
	b = append(b, message...)
	return append(b, '\r', '\n')
}

// formatMultiline renders a multi-line reply. Every line but the last is
// prefixed with "<code>-", the last one with "<code> ".
func formatMultiline(code int, lines []string) []byte {
	if len(lines) == 0 {
		return formatReply(code, "")
	}
	var buf bytes.Buffer
	prefix := strconv.Itoa(code)
	for i, line := range lines {
		buf.WriteString(prefix)
		if i == len(lines)-1 {
			buf.WriteByte(' ')
		} else {
			buf.WriteByte('-')
		}
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

// commandLine is one parsed control line.
type commandLine struct {
	verb string
	arg  string
}

// parseCommandLine splits line on the first run of whitespace. The verb is
// upper-cased; the argument is kept verbatim so paths with spaces survive.
func parseCommandLine(line string) commandLine {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimLeft(line, " \t")
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return commandLine{verb: strings.ToUpper(line)}
	}
	return commandLine{
		verb: strings.ToUpper(line[:idx]),
		arg:  strings.TrimLeft(line[idx:], " \t"),
	}
}

// readLine reads one control line from r, without the trailing LF, and
// with Telnet option negotiation (IAC WILL/WONT/DO/DONT x, IAC x) removed.
// An escaped IAC IAC is kept as a single 0xFF byte.
func readLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return string(line), err
		}
		if b == '\n' {
			return string(line), nil
		}
		if b == telnetIAC {
			next, err := r.ReadByte()
			if err != nil {
				return string(line), err
			}
			switch next {
			case telnetIAC:
			case telnetWILL, telnetWONT, telnetDO, telnetDONT:
				if _, err := r.ReadByte(); err != nil {
					return string(line), err
				}
				continue
			default:
				continue
			}
		}
		if len(line) >= MaxCommandLength {
			return "", discardLine(r)
		}
		line = append(line, b)
	}
}

// discardLine skips the rest of an overlong line so the next command can
// be read.
func discardLine(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			return errLineTooLong
		}
	}
}
