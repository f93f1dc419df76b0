package workflows

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/esicorp/securetransfer/internal/audit"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/packaging"
)

// ClearHistoryResult reports a history cleanup.
type ClearHistoryResult struct {
	Removed int
}

// ClearHistory deletes every transfer session directory. The audit log is
// kept.
func ClearHistory(ctx context.Context, env *Env) (*ClearHistoryResult, error) {
	entry := env.Trail.New("history-clear")

	removed, err := packaging.ClearHistory(env.Settings.TransfersPath)
	entry.RemovedCount = removed
	entry.Fail(err)
	env.Trail.Log(entry)

	if err != nil {
		return nil, err
	}
	env.Logger.Infof("Removed %d sessions from %s", removed, env.Settings.TransfersPath)
	return &ClearHistoryResult{Removed: removed}, nil
}

// HistoryOptions selects audit entries. Zero values select everything.
type HistoryOptions struct {
	// Limit keeps only the N most recent matches.
	Limit int

	// Reverse lists the most recent entry first.
	Reverse bool

	// User matches the local user name, ignoring case.
	User string

	// Operations is a comma-separated list such as "send,receive".
	Operations string

	// Since and Until are inclusive YYYY-MM-DD bounds in UTC.
	Since string
	Until string
}

// HistoryResult contains the selected entries and the sessions on disk.
type HistoryResult struct {
	Entries []audit.Entry

	// Sessions are the session directories still on disk, oldest first.
	Sessions []string

	// TotalEntriesBeforeFilter counts every readable entry in the trail.
	TotalEntriesBeforeFilter int
}

// entryFilter reports whether an entry should be listed.
type entryFilter func(e audit.Entry) bool

// History reads the audit trail and applies the options.
//
// Returns ErrInvalidDateFormat if a date bound is not YYYY-MM-DD.
func History(ctx context.Context, env *Env, opts HistoryOptions) (*HistoryResult, error) {
	filters, err := historyFilters(opts)
	if err != nil {
		return nil, err
	}

	entries, err := env.Trail.ReadEntries()
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	sessions, err := packaging.ListSessions(env.Settings.TransfersPath)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var selected []audit.Entry
	for _, e := range entries {
		if matchesAll(e, filters) {
			selected = append(selected, e)
		}
	}

	// The trail is append-only, so the newest matches are at the end.
	if opts.Limit > 0 && len(selected) > opts.Limit {
		selected = selected[len(selected)-opts.Limit:]
	}
	if opts.Reverse {
		slices.Reverse(selected)
	}

	return &HistoryResult{
		Entries:                  selected,
		Sessions:                 sessions,
		TotalEntriesBeforeFilter: len(entries),
	}, nil
}

func historyFilters(opts HistoryOptions) ([]entryFilter, error) {
	var filters []entryFilter

	if opts.User != "" {
		filters = append(filters, func(e audit.Entry) bool {
			return strings.EqualFold(e.User, opts.User)
		})
	}

	if opts.Operations != "" {
		wanted := make(map[string]bool)
		for _, op := range strings.Split(opts.Operations, ",") {
			if op = strings.ToLower(strings.TrimSpace(op)); op != "" {
				wanted[op] = true
			}
		}
		filters = append(filters, func(e audit.Entry) bool {
			return wanted[strings.ToLower(e.Operation)]
		})
	}

	if opts.Since != "" {
		since, err := parseDay(opts.Since, "--since")
		if err != nil {
			return nil, err
		}
		filters = append(filters, func(e audit.Entry) bool {
			t, err := parseTimestamp(e.Timestamp)
			return err == nil && !t.Before(since)
		})
	}

	if opts.Until != "" {
		until, err := parseDay(opts.Until, "--until")
		if err != nil {
			return nil, err
		}
		end := until.AddDate(0, 0, 1)
		filters = append(filters, func(e audit.Entry) bool {
			t, err := parseTimestamp(e.Timestamp)
			return err == nil && t.Before(end)
		})
	}

	return filters, nil
}

func matchesAll(e audit.Entry, filters []entryFilter) bool {
	for _, keep := range filters {
		if !keep(e) {
			return false
		}
	}
	return true
}

func parseDay(value, flag string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q, use YYYY-MM-DD", kerrors.ErrInvalidDateFormat, flag, value)
	}
	return day, nil
}

// parseTimestamp accepts the audit layout and plain RFC 3339.
func parseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(audit.TimestampLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
	}
	return t, err
}

// FormatDateTime formats a timestamp string to YYYY-MM-DD HH:MM:SS format.
func FormatDateTime(ts string) string {
	t, err := parseTimestamp(ts)
	if err != nil {
		if len(ts) >= 19 {
			return ts[:19]
		}
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatDetails summarizes an entry for the history listing.
func FormatDetails(e audit.Entry) string {
	var parts []string
	switch e.Operation {
	case "send", "receive":
		if len(e.Files) > 0 {
			parts = append(parts, strings.Join(e.Files, ", "))
		}
		if e.Peer != "" {
			parts = append(parts, e.Peer)
		}
		if e.Bytes > 0 {
			parts = append(parts, fmt.Sprintf("%d bytes", e.Bytes))
		}
		if e.Attempts > 1 {
			parts = append(parts, fmt.Sprintf("%d attempts", e.Attempts))
		}
	case "decrypt", "legacy-decrypt":
		if len(e.Files) > 0 {
			parts = append(parts, e.Files[0])
		}
		if e.FilesCount > 0 {
			parts = append(parts, fmt.Sprintf("%d files", e.FilesCount))
		}
	case "batch":
		if e.Peer != "" {
			parts = append(parts, e.Peer)
		}
		parts = append(parts, fmt.Sprintf("%d uploads", e.FilesCount))
	case "exchange-serve", "exchange-connect":
		parts = append(parts, e.Peer)
	case "history-clear":
		parts = append(parts, fmt.Sprintf("removed %d sessions", e.RemovedCount))
	default:
		if len(e.Files) > 0 {
			parts = append(parts, strings.Join(e.Files, ", "))
		}
	}
	if e.Error != "" {
		parts = append(parts, e.Error)
	}
	return strings.Join(parts, ", ")
}
