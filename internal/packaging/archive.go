package packaging

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/klauspost/compress/zip"
)

// ExtractDirName is the directory archives are unpacked into.
const ExtractDirName = "decrypted_files"

type ArchiveResult struct {
	Path    string
	Entries int
	Size    int64
}

type ExtractResult struct {
	Dir     string
	Entries int
}

// Archive deflates the staged tree into archivePath. Member names are
// relative to the staging root, so a directory keeps its own name as the
// first path segment. The staging directory is removed whether or not
// archiving succeeds.
func Archive(staged *Staged, archivePath string) (result *ArchiveResult, err error) {
	defer staged.Cleanup()

	f, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(archivePath)
		}
	}()

	zw := zip.NewWriter(f)
	entries := 0

	if !staged.IsDir {
		if err := addFile(zw, staged.Path, filepath.Base(staged.Path)); err != nil {
			return nil, err
		}
		entries = 1
	} else {
		base := filepath.Dir(staged.Path)
		err = filepath.WalkDir(staged.Path, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			entries++
			return addFile(zw, path, filepath.ToSlash(rel))
		})
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", staged.Path, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}

	return &ArchiveResult{Path: archivePath, Entries: entries, Size: info.Size()}, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(w, src)
	return err
}

// Extract unpacks archivePath into a fresh ExtractDirName directory under
// parentDir. Entries that would land outside that directory are rejected.
func Extract(archivePath, parentDir string) (result *ExtractResult, err error) {
	zr, err := zip.OpenReader(archivePath)
	if zr != nil {
		defer zr.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidArchive, err)
	}

	dest, err := freshDir(parentDir, ExtractDirName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dest)
		}
	}()

	for _, zf := range zr.File {
		target, err := safeJoin(dest, zf.Name)
		if err != nil {
			return nil, err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0700); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
			return nil, err
		}
		if err := extractFile(zf, target); err != nil {
			return nil, fmt.Errorf("extracting %s: %w", zf.Name, err)
		}
	}

	return &ExtractResult{Dir: dest, Entries: len(zr.File)}, nil
}

func extractFile(zf *zip.File, target string) (err error) {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, rc)
	return err
}

func safeJoin(dest, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: unsafe entry name %q", kerrors.ErrInvalidArchive, name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry %q escapes destination", kerrors.ErrInvalidArchive, name)
	}
	return target, nil
}

// freshDir creates parent/name, or parent/name_2, name_3... when taken.
func freshDir(parent, name string) (string, error) {
	if err := os.MkdirAll(parent, 0700); err != nil {
		return "", err
	}
	candidate := filepath.Join(parent, name)
	for i := 2; ; i++ {
		err := os.Mkdir(candidate, 0700)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		candidate = filepath.Join(parent, name+"_"+strconv.Itoa(i))
	}
}
