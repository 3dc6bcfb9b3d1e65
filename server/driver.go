package server

import (
	"io"
	"os"
)

// Driver is the interface that must be implemented by an FTP driver.
// It is responsible for authenticating users and providing a session-specific
// ClientContext for file operations.
//
// Implementations should:
//   - Validate user credentials (user, pass)
//   - Return a ClientContext that isolates the user's file operations
//   - Return os.ErrPermission for authentication failures
//
// Authenticate is called concurrently from many sessions and must not
// mutate shared state.
type Driver interface {
	// Authenticate validates the user and password and returns the
	// session's view of the served tree.
	Authenticate(user, pass string) (ClientContext, error)
}

// Credentials verifies a username/password pair against a static table.
// It is read-only after startup and safe for concurrent use.
type Credentials interface {
	Verify(user, pass string) bool
}

// ClientContext is the interface that must be implemented by a driver to handle
// file system operations for a specific client session.
//
// All paths use forward slashes. Relative paths are resolved against the
// context's working directory, absolute paths against the served root. A
// path that climbs above the root fails with ErrOutsideRoot.
//
// Error handling:
//   - Return os.ErrNotExist when files/directories don't exist
//   - Return os.ErrPermission for permission denied errors
//   - Return os.ErrExist when files/directories already exist
//   - The server will translate these to appropriate FTP response codes
//
// A ClientContext is owned by one session and is never shared.
type ClientContext interface {
	// ChangeDir changes the current working directory. On error the
	// working directory is left unchanged.
	ChangeDir(path string) error

	// GetWd returns the current working directory as a virtual path
	// starting with "/".
	GetWd() string

	// MakeDir creates a new directory.
	// Returns os.ErrExist if the directory already exists.
	MakeDir(path string) error

	// DeleteFile removes a file.
	// Returns os.ErrNotExist if the file doesn't exist.
	DeleteFile(path string) error

	// ListDir returns the immediate entries of a directory, or the single
	// entry of path when it names a file.
	ListDir(path string) ([]os.FileInfo, error)

	// OpenFile opens a file for reading or writing.
	// The flag parameter uses os.O_* constants.
	OpenFile(path string, flag int) (io.ReadWriteCloser, error)

	// Stat returns file or directory metadata.
	Stat(path string) (os.FileInfo, error)

	// Archive writes a zip archive of path (a file or a directory tree)
	// and returns the virtual path of the created archive.
	Archive(path string) (string, error)

	// Extract unpacks the zip archive at path into the working directory
	// and returns the number of extracted files.
	Extract(path string) (int, error)

	// Close releases any resources associated with this context.
	// Called when the client disconnects or logs in again.
	Close() error
}
