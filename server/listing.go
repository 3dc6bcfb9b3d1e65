package server

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// listTimestamp is the placeholder date column of LIST lines. Real
// modification times are not exposed.
const listTimestamp = "Jan 01 00:00"

// formatListLine renders one Unix-style long listing line. Permissions,
// link count and ownership are cosmetic placeholders.
func formatListLine(info os.FileInfo) string {
	perm := "-rw-r--r--"
	if info.IsDir() {
		perm = "drwxr-xr-x"
	}
	var b strings.Builder
	b.WriteString(perm)
	b.WriteString(" 1 owner group ")
	b.WriteString(strconv.FormatInt(info.Size(), 10))
	b.WriteByte(' ')
	b.WriteString(listTimestamp)
	b.WriteByte(' ')
	b.WriteString(info.Name())
	b.WriteString("\r\n")
	return b.String()
}

// writeListing writes entries to w, one CRLF-terminated line each. nameOnly
// selects the NLST format.
func writeListing(w io.Writer, entries []os.FileInfo, nameOnly bool) (int64, error) {
	bw := bufio.NewWriterSize(w, transferChunkSize)
	var n int64
	for _, entry := range entries {
		var line string
		if nameOnly {
			line = entry.Name() + "\r\n"
		} else {
			line = formatListLine(entry)
		}
		written, err := bw.WriteString(line)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// listPath strips "ls"-style option words ("-a", "-la") that clients put
// in front of the LIST path.
func listPath(arg string) string {
	for strings.HasPrefix(arg, "-") {
		idx := strings.IndexByte(arg, ' ')
		if idx < 0 {
			return ""
		}
		arg = strings.TrimLeft(arg[idx:], " ")
	}
	return arg
}
