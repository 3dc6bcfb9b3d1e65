package server

import "strings"

// features lists the FEAT extensions, each sent with a leading space.
var features = []string{
	"PASV",
	"EPSV",
	"ZIP",
	"UNZIP",
}

func (s *session) handleSYST(_ string) {
	s.reply(215, s.server.serverName)
}

func (s *session) handleFEAT(_ string) {
	lines := make([]string, 0, len(features)+2)
	lines = append(lines, "Features:")
	for _, f := range features {
		lines = append(lines, " "+f)
	}
	lines = append(lines, "End")
	s.replyLines(211, lines)
}

func (s *session) handleHELP(_ string) {
	s.replyLines(214, helpLines)
}

func (s *session) handleNOOP(_ string) {
	s.reply(200, "OK.")
}

// handleTYPE accepts "A", "A N", "I" and "L 8".
func (s *session) handleTYPE(arg string) {
	fields := strings.Fields(strings.ToUpper(arg))
	if len(fields) == 0 {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	switch {
	case fields[0] == "A" && (len(fields) == 1 || fields[1] == "N"):
		s.transferType = "A"
		s.reply(200, "Type set to A.")
	case fields[0] == "I" && len(fields) == 1:
		s.transferType = "I"
		s.reply(200, "Type set to I.")
	case fields[0] == "L" && len(fields) == 2 && fields[1] == "8":
		s.transferType = "I"
		s.reply(200, "Type set to L 8.")
	default:
		s.reply(504, "Command not implemented for that parameter.")
	}
}
