package batch

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/esicorp/securetransfer/internal/crypto"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	logger "github.com/esicorp/securetransfer/internal/logging"
	"github.com/esicorp/securetransfer/internal/packaging"

	"github.com/klauspost/compress/zip"
)

// HashRecord is the parsed content of a <stem>.hash.txt file.
type HashRecord struct {
	Hash string
	Name string
	Date string
}

// ParseHashRecord reads the "SHA-256:", "Archivo:" and "Fecha:" lines.
// Unknown lines are ignored.
func ParseHashRecord(r io.Reader) (*HashRecord, error) {
	rec := &HashRecord{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "SHA-256":
			rec.Hash = strings.ToLower(value)
		case "Archivo":
			rec.Name = value
		case "Fecha":
			rec.Date = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if rec.Hash == "" {
		return nil, fmt.Errorf("hash record has no SHA-256 line")
	}
	return rec, nil
}

// Restored is one envelope written back to its original content.
type Restored struct {
	Envelope string
	Output   string
	Hash     string

	// Verified is false when no hash record accompanied the envelope.
	Verified bool
}

// Failure is an envelope that could not be restored.
type Failure struct {
	Envelope string
	Err      error
}

type DecryptReport struct {
	Restored []Restored
	Failed   []Failure
}

// Decryptor restores legacy envelopes on the receiving server.
type Decryptor struct {
	Logger logger.Logger
}

// DecryptDir restores every *.enc in dir. Outputs are written next to the
// envelope under the name from the hash record, falling back to the
// envelope's stem. An output whose hash does not match its record is
// deleted and reported as failed.
func (d *Decryptor) DecryptDir(dir string) (*DecryptReport, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+EncryptedSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	report := &DecryptReport{}
	for _, enc := range matches {
		restored, err := d.DecryptFile(enc)
		if err != nil {
			d.Logger.Warnf("%s: %v", filepath.Base(enc), err)
			report.Failed = append(report.Failed, Failure{Envelope: enc, Err: err})
			continue
		}
		report.Restored = append(report.Restored, *restored)
	}
	return report, nil
}

// DecryptFile restores one envelope.
func (d *Decryptor) DecryptFile(encPath string) (*Restored, error) {
	dir := filepath.Dir(encPath)
	stem := strings.TrimSuffix(filepath.Base(encPath), EncryptedSuffix)

	raw, err := os.ReadFile(encPath)
	if err != nil {
		return nil, err
	}
	env, err := crypto.ParseLegacy(raw)
	if err != nil {
		return nil, err
	}
	plain, err := env.Open()
	if err != nil {
		return nil, err
	}
	content, err := base64.StdEncoding.DecodeString(string(plain))
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", kerrors.ErrMalformedEnvelope, err)
	}

	var record *HashRecord
	if f, err := os.Open(filepath.Join(dir, stem+HashSuffix)); err == nil {
		record, err = ParseHashRecord(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	name := stem
	if record != nil && record.Name != "" {
		name = packaging.SanitizeName(filepath.Base(record.Name))
	}
	out := filepath.Join(dir, name)
	if err := os.WriteFile(out, content, 0644); err != nil {
		return nil, err
	}

	res := &Restored{Envelope: encPath, Output: out, Hash: crypto.Hash(content)}
	if record == nil {
		d.Logger.WarnfUser("No hash record for %s, content not verified", filepath.Base(encPath))
		return res, nil
	}
	if res.Hash != record.Hash {
		os.Remove(out)
		return nil, fmt.Errorf("%w: expected %s, got %s", kerrors.ErrIntegrityMismatch, record.Hash, res.Hash)
	}
	res.Verified = true
	d.Logger.Infof("Restored %s", name)
	return res, nil
}

// Unbundle extracts a bundle zip into dir. Bundles are flat, so any entry
// with a directory component is rejected.
func Unbundle(zipPath, dir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if zr != nil {
		defer zr.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrInvalidArchive, zipPath, err)
	}

	var names []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name := zf.Name
		if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == ".." || name == "." {
			return names, fmt.Errorf("%w: unexpected entry %q", kerrors.ErrInvalidArchive, name)
		}
		if err := extractEntry(zf, filepath.Join(dir, name)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func extractEntry(zf *zip.File, target string) (err error) {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, rc)
	return err
}

// UnbundleDir extracts every *.zip in dir in place and returns the zips it
// opened.
func UnbundleDir(dir string) ([]string, error) {
	zips, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return nil, err
	}
	sort.Strings(zips)
	for _, z := range zips {
		if _, err := Unbundle(z, dir); err != nil {
			return nil, err
		}
	}
	return zips, nil
}
