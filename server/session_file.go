package server

import (
	"fmt"
	"strings"
)

// quotePath renders p for a 257 reply, doubling embedded quotes.
func quotePath(p string) string {
	return `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
}

func (s *session) handlePWD(_ string) {
	s.reply(257, quotePath(s.fs.GetWd())+" is the current directory.")
}

func (s *session) handleCWD(path string) {
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	s.changeDir(path)
}

func (s *session) handleCDUP(_ string) {
	s.changeDir("..")
}

func (s *session) changeDir(path string) {
	if err := s.fs.ChangeDir(path); err != nil {
		s.debug("change_dir_failed", "user", s.user, "path", path, "error", err)
		s.replyError(err)
		return
	}
	s.reply(250, "Directory successfully changed.")
}

func (s *session) handleMKD(path string) {
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if err := s.fs.MakeDir(path); err != nil {
		s.replyError(err)
		return
	}
	// Security audit: directory created
	s.logger().Info("directory_created",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", path,
	)
	s.reply(257, quotePath(path)+" created.")
}

func (s *session) handleDELE(path string) {
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if err := s.fs.DeleteFile(path); err != nil {
		s.replyError(err)
		return
	}
	// Security audit: file deleted
	s.logger().Info("file_deleted",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", path,
	)
	s.reply(250, "File deleted.")
}

func (s *session) handleZIP(path string) {
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	out, err := s.fs.Archive(path)
	if err != nil {
		s.logger().Warn("archive_failed",
			"session_id", s.sessionID,
			"user", s.user,
			"path", path,
			"error", err,
		)
		s.replyError(err)
		return
	}
	s.logger().Info("archive_created",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", path,
		"archive", out,
	)
	s.reply(226, fmt.Sprintf("Archive created: %s.", out))
}

func (s *session) handleUNZIP(path string) {
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	n, err := s.fs.Extract(path)
	if err != nil {
		s.logger().Warn("extract_failed",
			"session_id", s.sessionID,
			"user", s.user,
			"path", path,
			"extracted", n,
			"error", err,
		)
		s.replyError(err)
		return
	}
	s.logger().Info("archive_extracted",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"path", path,
		"files", n,
	)
	s.reply(200, fmt.Sprintf("Extracted %d files.", n))
}
