package keyexchange

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const commentTimeLayout = "2006-01-02 15:04:05"

// knownHostComment matches the "# <host> - <time>" lines AddKnownHost writes.
var knownHostComment = regexp.MustCompile(`^# .+ - \d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// TrustStore edits authorized_keys and known_hosts in an SSH directory.
// Files are not locked; a single operator is assumed.
type TrustStore struct {
	Dir string

	// Now stamps the comment lines. Nil means time.Now.
	Now func() time.Time
}

func (s *TrustStore) AuthorizedKeysPath() string {
	return filepath.Join(s.Dir, "authorized_keys")
}

func (s *TrustStore) KnownHostsPath() string {
	return filepath.Join(s.Dir, "known_hosts")
}

func (s *TrustStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AddAuthorizedKey appends key with a comment naming peerHost. It reports
// false without writing when the key text is already present.
func (s *TrustStore) AddAuthorizedKey(key, peerHost string) (bool, error) {
	key = strings.TrimSpace(key)
	path := s.AuthorizedKeysPath()

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.Contains(line, key) {
			return false, nil
		}
	}

	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return false, fmt.Errorf("creating %s: %w", s.Dir, err)
	}

	var b strings.Builder
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "# Added by key exchange: %s (%s)\n", hostOrUnknown(peerHost), s.now().Format(commentTimeLayout))
	b.WriteString(key + "\n")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(path, 0600); err != nil {
		return false, err
	}
	return true, nil
}

// AddKnownHost records key for addr, replacing any entry for exactly that
// address together with the comment line a previous exchange put above it. It reports false without writing
// when the same entry is already the only one for addr.
func (s *TrustStore) AddKnownHost(addr, key, peerHost string) (bool, error) {
	fields := strings.Fields(key)
	if len(fields) < 2 {
		return false, fmt.Errorf("invalid host key for %s", addr)
	}
	entry := addr + " " + fields[0] + " " + fields[1]
	path := s.KnownHostsPath()

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	var kept []string
	var matches []string
	lines := strings.Split(strings.TrimRight(string(existing), "\n"), "\n")
	for i, line := range lines {
		if line == "" && i == len(lines)-1 {
			continue
		}
		if strings.HasPrefix(line, addr+" ") {
			matches = append(matches, line)
			if n := len(kept); n > 0 && knownHostComment.MatchString(kept[n-1]) {
				kept = kept[:n-1]
			}
			continue
		}
		kept = append(kept, line)
	}
	if len(matches) == 1 && matches[0] == entry {
		return false, nil
	}

	kept = append(kept,
		fmt.Sprintf("# %s - %s", hostOrUnknown(peerHost), s.now().Format(commentTimeLayout)),
		entry,
	)

	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return false, fmt.Errorf("creating %s: %w", s.Dir, err)
	}
	if err := writeFileAtomic(path, []byte(strings.Join(kept, "\n")+"\n"), 0600); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

func hostOrUnknown(h string) string {
	if h == "" {
		return "unknown"
	}
	return h
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
