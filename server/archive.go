package server

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Archive zips p into "<p>.zip" next to it. Directories are stored
// recursively with their entries named relative to p's parent, so
// extracting the archive recreates p itself.
func (c *fsContext) Archive(p string) (string, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return "", err
	}
	info, err := c.root.Stat(rel)
	if err != nil {
		return "", err
	}

	out := archiveName(rel)
	f, err := c.root.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}

	zw := zip.NewWriter(f)
	if info.IsDir() {
		err = c.addTree(zw, rel, out)
	} else {
		err = c.addFile(zw, rel, path.Base(rel), info)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = c.root.Remove(out)
		return "", errors.Wrapf(err, "archive %s", p)
	}
	return "/" + out, nil
}

func archiveName(rel string) string {
	if rel == "." {
		return "root.zip"
	}
	return rel + ".zip"
}

func (c *fsContext) addTree(zw *zip.Writer, rel, skip string) error {
	prefix := ""
	if dir := path.Dir(rel); dir != "." {
		prefix = dir + "/"
	}
	return fs.WalkDir(c.root.FS(), rel, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." || name == skip {
			return nil
		}
		entry := strings.TrimPrefix(name, prefix)
		if d.IsDir() {
			_, err := zw.Create(entry + "/")
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return c.addFile(zw, name, entry, info)
	})
}

func (c *fsContext) addFile(zw *zip.Writer, rel, entry string, info os.FileInfo) error {
	src, err := c.root.Open(rel)
	if err != nil {
		return err
	}
	defer src.Close()

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = entry
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

// Extract unpacks the zip archive at p into the working directory. Every
// entry name is checked before anything is written, so an archive holding
// an absolute or ".." entry is rejected without side effects.
func (c *fsContext) Extract(p string) (int, error) {
	rel, err := c.resolve(p)
	if err != nil {
		return 0, err
	}
	f, err := c.root.Open(rel)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, ErrIsDirectory
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return 0, errors.Wrap(ErrInvalidArchive, err.Error())
	}

	for _, zf := range zr.File {
		if !filepath.IsLocal(zf.Name) || strings.Contains(zf.Name, `\`) {
			return 0, errors.Wrapf(ErrInvalidArchive, "unsafe entry %q", zf.Name)
		}
	}

	dest := toRootRel(c.cwd)
	n := 0
	for _, zf := range zr.File {
		target := path.Join(dest, zf.Name)
		if zf.FileInfo().IsDir() {
			if err := c.root.MkdirAll(target, 0755); err != nil {
				return n, err
			}
			continue
		}
		if dir := path.Dir(target); dir != "." {
			if err := c.root.MkdirAll(dir, 0755); err != nil {
				return n, err
			}
		}
		if err := c.extractFile(zf, target); err != nil {
			return n, errors.Wrapf(err, "extract %s", zf.Name)
		}
		n++
	}
	return n, nil
}

func (c *fsContext) extractFile(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := c.root.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
