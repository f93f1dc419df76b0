package packaging

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Staged is a sanitized private copy of the caller's input.
type Staged struct {
	// Root is the temporary directory holding the copy.
	Root string

	// Path is the sanitized top-level file or directory inside Root.
	Path string

	IsDir bool
	Files int
}

// Cleanup removes the staging directory.
func (s *Staged) Cleanup() error {
	return os.RemoveAll(s.Root)
}

// Stage copies inputPath (a file or a directory tree) into a new temporary
// directory, sanitizing every path component. The original is only read.
// If copying fails the partial staging directory is removed.
func Stage(inputPath string) (staged *Staged, err error) {
	src, err := filepath.Abs(strings.TrimRight(inputPath, string(os.PathSeparator)))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("reading input %s: %w", inputPath, err)
	}

	root, err := os.MkdirTemp("", "st_staging_")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(root)
		}
	}()

	staged = &Staged{
		Root:  root,
		Path:  filepath.Join(root, SanitizeName(filepath.Base(src))),
		IsDir: info.IsDir(),
	}

	if !info.IsDir() {
		if err := copyFile(src, staged.Path, info.Mode()); err != nil {
			return nil, err
		}
		staged.Files = 1
		return staged, nil
	}

	// Sanitized destination directory for each source directory.
	dirs := map[string]string{src: staged.Path}
	if err := os.Mkdir(staged.Path, 0700); err != nil {
		return nil, err
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == src {
			return nil
		}

		parent, ok := dirs[filepath.Dir(path)]
		if !ok {
			return fmt.Errorf("staging %s: parent directory was not staged", path)
		}
		dest := uniquePath(parent, SanitizeName(d.Name()))

		switch {
		case d.IsDir():
			dirs[path] = dest
			return os.Mkdir(dest, 0700)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			staged.Files++
			return copyFile(path, dest, info.Mode())
		default:
			// Symlinks and special files are not transferred.
			return nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("staging %s: %w", inputPath, err)
	}

	return staged, nil
}

// uniquePath avoids two source names collapsing onto one sanitized name.
func uniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); os.IsNotExist(err) {
		return candidate
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(i)+ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyFile(src, dst string, mode fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm()|0600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
