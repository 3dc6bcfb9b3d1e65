package server

import (
	"errors"
	"io/fs"
	"net"
)

// Kind classifies an error so a handler can pick the reply code.
type Kind int

const (
	// KindOther is any error that does not fit a more specific kind.
	KindOther Kind = iota
	// KindNotFound means the file or directory does not exist.
	KindNotFound
	// KindPermission means the operation is not allowed, including paths
	// that would leave the served root.
	KindPermission
	// KindExists means the target already exists.
	KindExists
	// KindIO is a transport or disk failure in the middle of an operation.
	KindIO
	// KindProtocol is a malformed or out-of-sequence command.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindExists:
		return "exists"
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	default:
		return "other"
	}
}

var (
	// ErrOutsideRoot is returned when a path climbs above the served root.
	ErrOutsideRoot = errors.New("path escapes the server root")

	// ErrNotDirectory is returned by ChangeDir when the target is a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory is returned by file-only operations (DELE, RETR)
	// when the target is a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrNoDataChannel is returned when a data-bearing command arrives
	// without a preceding PASV or EPSV.
	ErrNoDataChannel = errors.New("no data connection set up")

	// ErrInvalidArchive is returned by UNZIP for entries that cannot be
	// extracted safely or for files that are not zip archives.
	ErrInvalidArchive = errors.New("invalid archive")
)

// kindOf maps err onto a Kind. Wrapped errors are unwrapped with errors.Is.
func kindOf(err error) Kind {
	var netErr net.Error
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrNotDirectory):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, ErrOutsideRoot):
		return KindPermission
	case errors.Is(err, fs.ErrExist):
		return KindExists
	case errors.Is(err, ErrNoDataChannel), errors.Is(err, ErrInvalidArchive):
		return KindProtocol
	case errors.As(err, &netErr):
		return KindIO
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return KindIO
	}
	return KindOther
}

// replyError sends the 550 reply matching err. The message never contains
// the host path of the served root.
func (s *session) replyError(err error) {
	if errors.Is(err, ErrIsDirectory) {
		s.reply(550, "Not a plain file.")
		return
	}
	switch kindOf(err) {
	case KindNotFound:
		s.reply(550, "File not found.")
	case KindPermission:
		s.reply(550, "Permission denied.")
	case KindExists:
		s.reply(550, "File already exists.")
	case KindProtocol:
		s.reply(550, "Requested action not taken.")
	default:
		s.reply(550, "Requested action failed.")
	}
}
