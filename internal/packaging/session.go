package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// SessionIDLayout formats session ids as YYYYMMDD_HHMMSS.
	SessionIDLayout = "20060102_150405"

	ArchiveName  = "temp.zip"
	EnvelopeName = "payload.enc"
	ReceivedName = "received.enc"
)

// Session owns the working directories of one transfer.
type Session struct {
	ID          string
	Root        string
	SenderDir   string
	ReceiverDir string
}

// NewSessionID derives a session id from t.
func NewSessionID(t time.Time) string {
	return t.Format(SessionIDLayout)
}

// NewSession creates (or reopens) <baseDir>/<id>/{sender,receiver}. The id
// is sanitized since it may come from a peer.
func NewSession(baseDir, id string) (*Session, error) {
	id = SanitizeName(id)
	root := filepath.Join(baseDir, id)
	s := &Session{
		ID:          id,
		Root:        root,
		SenderDir:   filepath.Join(root, "sender"),
		ReceiverDir: filepath.Join(root, "receiver"),
	}

	for _, dir := range []string{s.SenderDir, s.ReceiverDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Session) SenderPath(name string) string {
	return filepath.Join(s.SenderDir, name)
}

func (s *Session) ReceiverPath(name string) string {
	return filepath.Join(s.ReceiverDir, name)
}

// Compress stages inputPath and archives it as the session's temp.zip.
func (s *Session) Compress(inputPath string) (*ArchiveResult, error) {
	staged, err := Stage(inputPath)
	if err != nil {
		return nil, err
	}
	return Archive(staged, s.SenderPath(ArchiveName))
}

// ListSessions returns the session directory names under baseDir, oldest first.
func ListSessions(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ClearHistory removes every session directory under baseDir and reports
// how many were removed. Plain files such as the audit log are kept.
func ClearHistory(baseDir string) (int, error) {
	ids, err := ListSessions(baseDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if err := os.RemoveAll(filepath.Join(baseDir, id)); err != nil {
			return removed, fmt.Errorf("removing session %s: %w", id, err)
		}
		removed++
	}
	return removed, nil
}
