package batch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/esicorp/securetransfer/internal/crypto"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	logger "github.com/esicorp/securetransfer/internal/logging"

	"github.com/klauspost/compress/zip"
)

// FilenamePattern is the production naming rule: Area-DD-MM-YYYY.Site,
// for example Finanzas-12-12-2025.lima.
var FilenamePattern = regexp.MustCompile(`^[A-Za-z]+-\d{2}-\d{2}-\d{4}\.[A-Za-z]+$`)

const (
	MetadataName    = "metadata.txt"
	HashSuffix      = ".hash.txt"
	EncryptedSuffix = ".enc"

	timestampLayout = "2006-01-02T15:04:05.000000"
)

// Processor turns files from the outbox into legacy bundles: a zip holding
// the CBC envelope, a hash record and a metadata note.
type Processor struct {
	OutboxDir    string
	ProcessedDir string

	// Now stamps the hash record and metadata. Nil means time.Now.
	Now    func() time.Time
	Logger logger.Logger
}

// Bundle is one processed file.
type Bundle struct {
	Source  string
	ZipPath string
	Hash    string
	Size    int64
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// FindFiles lists regular files in the outbox, sorted by name. With strict
// set only names matching FilenamePattern are returned. A missing outbox
// yields no files.
func (p *Processor) FindFiles(strict bool) ([]string, error) {
	entries, err := os.ReadDir(p.OutboxDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strict && !FilenamePattern.MatchString(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(p.OutboxDir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ProcessFile hashes path, seals base64(content) in a legacy envelope and
// zips the envelope with its hash record and metadata as
// <processed>/<stem>.zip. The intermediate files are removed.
func (p *Processor) ProcessFile(path string) (*Bundle, error) {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	hash, err := crypto.HashFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
		}
		return nil, err
	}
	if err := os.MkdirAll(p.ProcessedDir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", p.ProcessedDir, err)
	}

	stamp := p.now().Format(timestampLayout)
	p.Logger.Debugf("%s sha256 %s", name, hash)

	hashPath := filepath.Join(p.ProcessedDir, stem+HashSuffix)
	encPath := filepath.Join(p.ProcessedDir, stem+EncryptedSuffix)
	defer os.Remove(hashPath)
	defer os.Remove(encPath)

	if err := os.WriteFile(hashPath, []byte(FormatHashRecord(hash, name, stamp)), 0644); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	encoded := []byte(base64.StdEncoding.EncodeToString(data))
	env, err := crypto.SealLegacy(encoded)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(encPath, env.Marshal(), 0644); err != nil {
		return nil, err
	}

	zipPath := filepath.Join(p.ProcessedDir, stem+".zip")
	metadata := fmt.Sprintf("ESICORP - Archivo Seguro\nArchivo Original: %s\nProcesado: %s\nHash SHA-256: %s\nAlgoritmo Cifrado: AES-256-CBC\n",
		name, stamp, hash)
	if err := writeBundle(zipPath, []string{encPath, hashPath}, metadata); err != nil {
		os.Remove(zipPath)
		return nil, err
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		return nil, err
	}
	p.Logger.Infof("Bundled %s as %s", name, filepath.Base(zipPath))
	return &Bundle{Source: path, ZipPath: zipPath, Hash: hash, Size: info.Size()}, nil
}

// ProcessPath bundles a single file, or every regular file directly inside
// a directory. Files that fail are skipped and reported together in the
// returned error.
func (p *Processor) ProcessPath(path string) ([]*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
		}
		return nil, err
	}

	files := []string{path}
	if info.IsDir() {
		files, err = (&Processor{OutboxDir: path}).FindFiles(false)
		if err != nil {
			return nil, err
		}
	}
	return p.ProcessFiles(files)
}

// ProcessFiles bundles files in order, continuing past failures.
func (p *Processor) ProcessFiles(files []string) ([]*Bundle, error) {
	var bundles []*Bundle
	var errs []error
	for _, f := range files {
		b, err := p.ProcessFile(f)
		if err != nil {
			p.Logger.Warnf("Skipping %s: %v", filepath.Base(f), err)
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(f), err))
			continue
		}
		bundles = append(bundles, b)
	}
	return bundles, errors.Join(errs...)
}

// FormatHashRecord renders a <stem>.hash.txt file.
func FormatHashRecord(hash, name, stamp string) string {
	return fmt.Sprintf("SHA-256: %s\nArchivo: %s\nFecha: %s\n", hash, name, stamp)
}

func writeBundle(zipPath string, files []string, metadata string) (err error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addFile(zw, f); err != nil {
			zw.Close()
			return err
		}
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: MetadataName, Method: zip.Deflate, Modified: time.Now()})
	if err != nil {
		zw.Close()
		return err
	}
	if _, err := io.WriteString(w, metadata); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func addFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
