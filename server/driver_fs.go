package server

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FSDriver implements Driver using the local filesystem.
//
// Security Model:
//   - All file operations are confined to the root path using os.Root
//   - Paths whose ".." components climb above the root are rejected
//     before the filesystem is touched
//   - Each user session gets an isolated ClientContext
//
// Authentication is delegated to a Credentials table. Without one every
// login is rejected.
type FSDriver struct {
	rootPath    string
	credentials Credentials
}

// FSDriverOption is a functional option for configuring an FSDriver.
type FSDriverOption func(*FSDriver)

// NewFSDriver creates a new filesystem driver with the given root path and options.
// Returns an error if the root path does not exist or is not a directory.
//
//	table := credentials.New(map[string]string{"alice": "secret"})
//	driver, err := server.NewFSDriver("/srv/ftp", server.WithCredentials(table))
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewFSDriver(rootPath string, options ...FSDriverOption) (*FSDriver, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", rootPath)
	}

	d := &FSDriver{rootPath: rootPath}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// WithCredentials sets the table used to verify USER/PASS pairs.
func WithCredentials(c Credentials) FSDriverOption {
	return func(d *FSDriver) {
		d.credentials = c
	}
}

// Authenticate returns a new ClientContext rooted at the driver's root path
// when the credentials match.
func (d *FSDriver) Authenticate(user, pass string) (ClientContext, error) {
	if d.credentials == nil || !d.credentials.Verify(user, pass) {
		return nil, os.ErrPermission
	}

	root, err := os.OpenRoot(d.rootPath)
	if err != nil {
		return nil, errors.Wrap(err, "open root")
	}
	return &fsContext{root: root, cwd: "/"}, nil
}

// fsContext implements ClientContext for the local filesystem.
// cwd is a virtual path; "/" is the root handle itself.
type fsContext struct {
	root *os.Root
	cwd  string
}

// joinVirtual resolves p against cwd and returns a clean virtual path.
// Unlike path.Clean, a ".." at the top does not silently stay at "/":
// it fails with ErrOutsideRoot.
func joinVirtual(cwd, p string) (string, error) {
	if p == "" {
		return cwd, nil
	}
	base := cwd
	if strings.HasPrefix(p, "/") {
		base = "/"
	}

	var parts []string
	for _, seg := range strings.Split(base, "/") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) == 0 {
				return "", ErrOutsideRoot
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, seg)
		}
	}
	return "/" + strings.Join(parts, "/"), nil
}

// resolve returns p as a path relative to the root handle.
func (c *fsContext) resolve(p string) (string, error) {
	virt, err := joinVirtual(c.cwd, p)
	if err != nil {
		return "", err
	}
	return toRootRel(virt), nil
}

func toRootRel(virt string) string {
	rel := strings.TrimPrefix(virt, "/")
	if rel == "" {
		return "."
	}
	return rel
}

func (c *fsContext) Close() error {
	return c.root.Close()
}

func (c *fsContext) ChangeDir(p string) error {
	virt, err := joinVirtual(c.cwd, p)
	if err != nil {
		return err
	}
	info, err := c.root.Stat(toRootRel(virt))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	c.cwd = virt
	return nil
}

func (c *fsContext) GetWd() string {
	return c.cwd
}

func (c *fsContext) MakeDir(p string) error {
	rel, err := c.resolve(p)
	if err != nil {
		return err
	}
	return c.root.Mkdir(rel, 0755)
}

func (c *fsContext) DeleteFile(p string) error {
	rel, err := c.resolve(p)
	if err != nil {
		return err
	}
	info, err := c.root.Lstat(rel)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return ErrIsDirectory
	}
	return c.root.Remove(rel)
}

func (c *fsContext) ListDir(p string) ([]os.FileInfo, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := c.root.Stat(rel)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []os.FileInfo{info}, nil
	}

	f, err := c.root.Open(rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", p)
	}
	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if info, err := entry.Info(); err == nil {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (c *fsContext) OpenFile(p string, flag int) (io.ReadWriteCloser, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := c.root.OpenFile(rel, flag, 0644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *fsContext) Stat(p string) (os.FileInfo, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return c.root.Stat(rel)
}

var _ ClientContext = (*fsContext)(nil)
