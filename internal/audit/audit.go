package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	User      string `json:"user"` // Local user performing the action.
	Host      string `json:"host"` // Local hostname.
	UUID      string `json:"uuid"` // Installation UUID.
	Operation string `json:"op"`   // Operation name.
	Result    string `json:"result"`

	// Optional fields depending on operation.
	Session      string   `json:"session,omitempty"`       // For send/receive/decrypt.
	Peer         string   `json:"peer,omitempty"`          // Remote address for send/receive/exchange.
	Files        []string `json:"files,omitempty"`         // Inputs or outputs.
	Bytes        int64    `json:"bytes,omitempty"`         // Envelope or upload size.
	Hash         string   `json:"hash,omitempty"`          // Content hash.
	Attempts     int      `json:"attempts,omitempty"`      // For send retries.
	FilesCount   int      `json:"files_count,omitempty"`   // For batch/extract.
	RemovedCount int      `json:"removed_count,omitempty"` // For history clear.
	Error        string   `json:"error,omitempty"`
}

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Trail appends entries to a JSON Lines file. A nil Trail or one with an
// empty Path records nothing.
type Trail struct {
	Path string
	User string
	Host string
	UUID string
}

// New returns an entry for op with the trail's identity filled in.
func (t *Trail) New(op string) Entry {
	entry := Entry{Operation: op, Result: ResultOK}
	if t != nil {
		entry.User = t.User
		entry.Host = t.Host
		entry.UUID = t.UUID
	}
	return entry
}

// Fail marks the entry as failed with err.
func (e *Entry) Fail(err error) {
	if err == nil {
		return
	}
	e.Result = ResultFailed
	e.Error = err.Error()
}

// TimestampLayout is the UTC layout of Entry.Timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Log appends entry as one JSON line, stamping it with the current time
// when it carries none. Failures are dropped: a transfer never fails
// because its record could not be written.
func (t *Trail) Log(entry Entry) {
	if t == nil || t.Path == "" {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampLayout)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if os.MkdirAll(filepath.Dir(t.Path), 0700) != nil {
		return
	}

	// #nosec G302 -- the trail holds no secrets, only names and hashes.
	f, err := os.OpenFile(t.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
	_ = f.Close()
}

// ReadEntries loads the whole trail. A trail that was never written reads
// as empty.
func (t *Trail) ReadEntries() ([]Entry, error) {
	if t == nil || t.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(t.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return ParseEntries(data)
}

// ParseEntries decodes JSON Lines. Blank and unreadable lines are skipped
// so one torn write does not hide the rest of the trail.
func ParseEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if json.Unmarshal(line, &entry) == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
