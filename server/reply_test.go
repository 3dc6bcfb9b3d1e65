package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFormatReply(t *testing.T) {
	got := string(formatReply(227, "Entering Passive Mode (127,0,0,1,4,1)."))
	if got != "227 Entering Passive Mode (127,0,0,1,4,1).\r\n" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestFormatMultiline(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected string
	}{
		{"Single line", []string{"End"}, "211 End\r\n"},
		{"Features", []string{"Features:", " PASV", "End"}, "211-Features:\r\n211- PASV\r\n211 End\r\n"},
		{"Empty", nil, "211 \r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(formatMultiline(211, tt.lines))
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		line string
		verb string
		arg  string
	}{
		{"USER alice\r\n", "USER", "alice"},
		{"user alice", "USER", "alice"},
		{"NOOP\r", "NOOP", ""},
		{"STOR my file.txt\r\n", "STOR", "my file.txt"},
		{"CWD   spaced", "CWD", "spaced"},
		{"RETR\ttab.txt", "RETR", "tab.txt"},
		{"  PWD", "PWD", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		got := parseCommandLine(tt.line)
		if got.verb != tt.verb || got.arg != tt.arg {
			t.Errorf("parseCommandLine(%q) = {%q %q}, want {%q %q}", tt.line, got.verb, got.arg, tt.verb, tt.arg)
		}
	}
}

func TestReadLineTelnet(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "Normal command",
			input:    []byte("USER anonymous\r\n"),
			expected: "USER anonymous\r",
		},
		{
			name:     "IAC WILL",
			input:    []byte{telnetIAC, telnetWILL, 0x01, 'A', 'B', 'C', '\n'},
			expected: "ABC",
		},
		{
			name:     "IAC WONT",
			input:    []byte{telnetIAC, telnetWONT, 0x02, 'D', 'E', 'F', '\n'},
			expected: "DEF",
		},
		{
			name:     "IAC DO",
			input:    []byte{telnetIAC, telnetDO, 0x03, 'G', 'H', 'I', '\n'},
			expected: "GHI",
		},
		{
			name:     "IAC DONT",
			input:    []byte{telnetIAC, telnetDONT, 0x04, 'J', 'K', 'L', '\n'},
			expected: "JKL",
		},
		{
			name:     "IAC Escaping",
			input:    []byte{'X', telnetIAC, telnetIAC, 'Y', '\n'},
			expected: "X\xffY",
		},
		{
			name:     "Unknown command (2 byte)",
			input:    []byte{telnetIAC, 0xF0, 'A', '\n'},
			expected: "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLine(bufio.NewReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestReadLineLimits(t *testing.T) {
	input := strings.Repeat("x", MaxCommandLength+1) + "\r\nNOOP\r\n"
	r := bufio.NewReader(strings.NewReader(input))

	if _, err := readLine(r); !errors.Is(err, errLineTooLong) {
		t.Fatalf("expected errLineTooLong, got %v", err)
	}
	line, err := readLine(r)
	fatalIfErr(t, err, "read after overlong line")
	if line != "NOOP\r" {
		t.Errorf("expected the next line, got %q", line)
	}

	// Exactly MaxCommandLength bytes is allowed.
	exact := strings.Repeat("y", MaxCommandLength)
	line, err = readLine(bufio.NewReader(strings.NewReader(exact + "\n")))
	fatalIfErr(t, err, "read exact line")
	if line != exact {
		t.Errorf("line truncated to %d bytes", len(line))
	}

	_, err = readLine(bufio.NewReader(strings.NewReader("partial")))
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
