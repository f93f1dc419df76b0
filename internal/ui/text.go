package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders one kind of value. With color the text is painted;
// without color it is wrapped in plain-text marks so the kind stays
// recognizable in logs and pipes.
type Formatter struct {
	color *color.Color
	open  string
	close string
}

func (f Formatter) Sprint(a ...interface{}) string {
	return f.render(fmt.Sprint(a...))
}

func (f Formatter) Sprintf(format string, a ...interface{}) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if plain() {
		return f.open + text + f.close
	}
	return f.color.Sprint(text)
}

// EnsureNewline appends a newline unless s already ends with one.
func EnsureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// plain reports whether output must stay uncolored, honoring NO_COLOR
// (https://no-color.org/) and fatih/color's terminal detection.
func plain() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return true
	}
	return color.NoColor
}

func painted(attr color.Attribute, open, close string) Formatter {
	return Formatter{color: color.New(attr), open: open, close: close}
}

var (
	// Code marks commands the operator can run: `securetransfer info`.
	Code = painted(color.FgYellow, "`", "`")

	// Path marks files and directories: envelopes, keys, session folders.
	Path = painted(color.FgYellow, "", "")

	// Flag marks command-line flags and configuration keys.
	Flag = painted(color.FgYellow, "", "")

	Success = painted(color.FgGreen, "", "")
	Error   = painted(color.FgRed, "", "")
	Warning = painted(color.FgYellow, "", "")
	Info    = painted(color.FgCyan, "", "")

	// Highlight marks peer values: addresses, session ids, hashes.
	Highlight = painted(color.FgCyan, "'", "'")

	// Muted marks secondary detail such as fingerprints and sizes.
	Muted = painted(color.FgHiBlack, "(", ")")
)

// Status marks used at the start of final messages.
func Check() string   { return Success.Sprint("✓") }
func Cross() string   { return Error.Sprint("✗") }
func Arrow() string   { return Info.Sprint("→") }
func Caution() string { return Warning.Sprint("⚠") }

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
