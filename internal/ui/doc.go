// Package ui provides semantic text formatting for CLI output.
//
// Formatters render content by type (code, paths, hosts, errors) and adapt
// to terminal capabilities. When NO_COLOR is set or the terminal doesn't
// support colors, text decorations (backticks, quotes) are used instead.
//
//	ui.Code.Sprint("securetransfer receive -c 4242") // Commands
//	ui.Path.Sprint("transfers/20240101_120000")      // File paths
//	ui.Highlight.Sprint("192.168.1.20")              // User values
//	ui.Muted.Sprint("optional")                      // De-emphasized text
//
// Check, Cross, Arrow and Caution return the status marks used at the start
// of final messages. Banner renders the interactive menu title.
package ui
