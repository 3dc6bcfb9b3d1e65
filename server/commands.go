package server

import (
	"sort"
	"strings"
)

// commandSpec is one entry of the verb table.
type commandSpec struct {
	handler func(*session, string)
	// auth reports whether the verb needs a logged-in session.
	auth bool
}

// commandTable maps FTP verbs to their handlers. It is built once at
// package init and only read afterwards, so sessions share it freely.
var commandTable = map[string]commandSpec{
	// Access control
	"USER": {handler: (*session).handleUSER},
	"PASS": {handler: (*session).handlePASS},
	"QUIT": {handler: (*session).handleQUIT},

	// Information
	"SYST": {handler: (*session).handleSYST, auth: true},
	"FEAT": {handler: (*session).handleFEAT, auth: true},
	"HELP": {handler: (*session).handleHELP, auth: true},
	"NOOP": {handler: (*session).handleNOOP, auth: true},
	"TYPE": {handler: (*session).handleTYPE, auth: true},

	// File Management
	"PWD":  {handler: (*session).handlePWD, auth: true},
	"XPWD": {handler: (*session).handlePWD, auth: true},
	"CWD":  {handler: (*session).handleCWD, auth: true},
	"XCWD": {handler: (*session).handleCWD, auth: true},
	"CDUP": {handler: (*session).handleCDUP, auth: true},
	"XCUP": {handler: (*session).handleCDUP, auth: true},
	"MKD":  {handler: (*session).handleMKD, auth: true},
	"XMKD": {handler: (*session).handleMKD, auth: true},
	"DELE": {handler: (*session).handleDELE, auth: true},

	// Data channel
	"PASV": {handler: (*session).handlePASV, auth: true},
	"EPSV": {handler: (*session).handleEPSV, auth: true},

	// File Transfer
	"LIST": {handler: (*session).handleLIST, auth: true},
	"NLST": {handler: (*session).handleNLST, auth: true},
	"RETR": {handler: (*session).handleRETR, auth: true},
	"STOR": {handler: (*session).handleSTOR, auth: true},

	// Extensions
	"ZIP":   {handler: (*session).handleZIP, auth: true},
	"UNZIP": {handler: (*session).handleUNZIP, auth: true},
}

// unknownCommand is dispatched for verbs missing from commandTable,
// whatever the login state.
var unknownCommand = commandSpec{handler: (*session).handleUnknown}

// helpLines is the body of the HELP reply, filled from commandTable.
var helpLines []string

func init() {
	verbs := make([]string, 0, len(commandTable))
	for verb := range commandTable {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)

	helpLines = append(helpLines, "The following commands are recognized.")
	for i := 0; i < len(verbs); i += 8 {
		end := min(i+8, len(verbs))
		helpLines = append(helpLines, " "+strings.Join(verbs[i:end], " "))
	}
	helpLines = append(helpLines, "Help OK.")
}

func (s *session) handleUnknown(_ string) {
	s.reply(502, "Command not implemented.")
}

func (s *session) handleQUIT(_ string) {
	s.reply(221, "Service closing control connection.")
	s.quit = true
}
