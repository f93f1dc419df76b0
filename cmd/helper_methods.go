package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/utils"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
// This ensures consistent output formatting across all commands.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	err := s.Color("cyan")
	if err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		// Restore log output first.
		if !verbose && !debug {
			log.SetOutput(os.Stdout)
		}

		// Ensure final message ends with a newline.
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		// Stop the spinner first to clear the spinner line.
		if !verbose && !debug {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// ReportedError marks an error whose message was already shown to the user.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }
func (e *ReportedError) Unwrap() error { return e.Err }

// failWith sets the spinner's final message to a description of err and
// returns err marked as reported, so the command still exits non-zero.
func failWith(s *spinner.Spinner, err error) error {
	s.FinalMSG = failureMessage(err)
	return &ReportedError{Err: err}
}

// failureMessage renders err with a hint for the conditions an operator
// can act on.
func failureMessage(err error) string {
	msg := ui.Cross() + " " + ui.Error.Sprint("Error: ") + err.Error()
	if hint := errorHint(err); hint != "" {
		msg += "\n" + ui.Arrow() + " " + hint
	}
	return msg
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrAuthenticationRejected):
		return "Check the security code with the receiver and try again"
	case errors.Is(err, kerrors.ErrConnection):
		return "Make sure the receiver is listening and the address and port are correct"
	case errors.Is(err, kerrors.ErrAuthenticationFailure):
		return "The envelope was not produced with this installation's key, or it was altered"
	case errors.Is(err, kerrors.ErrIntegrityMismatch):
		return "The file was modified after it was packaged; ask the sender for a new copy"
	case errors.Is(err, kerrors.ErrMalformedEnvelope):
		return "The file is not a complete envelope; it may be truncated"
	case errors.Is(err, kerrors.ErrRemoteAuthRequired):
		return "The server does not trust this machine yet. Run " + ui.Code.Sprint("securetransfer info") + " for enrollment steps"
	case errors.Is(err, kerrors.ErrPublicKeyNotFound), errors.Is(err, kerrors.ErrPrivateKeyNotFound):
		return "Run " + ui.Code.Sprint("securetransfer keys generate") + " first"
	case errors.Is(err, kerrors.ErrPassphraseRequired):
		return "Passphrase-protected keys are not supported; regenerate with " + ui.Code.Sprint("securetransfer keys generate --force")
	case errors.Is(err, kerrors.ErrPayloadTooLarge):
		return "Raise " + ui.Flag.Sprint("network.max_payload_bytes") + " in the configuration to accept larger transfers"
	case errors.Is(err, kerrors.ErrInvalidSecurityCode):
		return "Security codes must be non-empty and contain no spaces"
	case errors.Is(err, kerrors.ErrMissingRemoteHost):
		return "Pass " + ui.Flag.Sprint("--host") + " or set " + ui.Flag.Sprint("sftp.host") + " in the configuration"
	case errors.Is(err, kerrors.ErrPeerDeclined):
		return "The other side cancelled the exchange"
	}
	return ""
}

// progressPrinter returns a progress callback that prints whole-percent
// updates on one line. It prints nothing in verbose or debug mode, where
// the logger reports progress instead.
func progressPrinter(label string) func(done, total int64) {
	last := -1
	return func(done, total int64) {
		if verbose || debug || total <= 0 {
			return
		}
		pct := int(done * 100 / total)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(os.Stderr, "\r%s %3d%% (%s / %s)", label, pct, ui.FormatBytes(done), ui.FormatBytes(total))
		if done >= total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// stdin is the source of interactive answers; tests replace it.
var (
	stdin io.Reader = os.Stdin
	input *bufio.Reader
)

func inputReader() *bufio.Reader {
	if input == nil {
		input = bufio.NewReader(stdin)
	}
	return input
}

// promptLine prints prompt and returns the trimmed answer, or defaultValue
// when the answer is empty.
func promptLine(prompt, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Printf("%s: ", prompt)
	}

	answer, err := inputReader().ReadString('\n')
	if err != nil && (err != io.EOF || answer == "") {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// promptPort asks for a TCP port until the answer is valid.
func promptPort(prompt string, defaultPort int) (int, error) {
	for {
		answer, err := promptLine(prompt, strconv.Itoa(defaultPort))
		if err != nil {
			return 0, err
		}
		port, err := strconv.Atoi(answer)
		if err == nil && port > 0 && port <= 65535 {
			return port, nil
		}
		fmt.Println(ui.Cross() + " Port must be a number between 1 and 65535")
	}
}

// promptCode reads a security code without echo on a terminal and as a
// plain line otherwise.
func promptCode(prompt string) (string, error) {
	if stdin == os.Stdin && utils.IsTerminal() {
		return utils.ReadSecret(prompt + ": ")
	}
	return promptLine(prompt, "")
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	response, err := inputReader().ReadString('\n')
	if err != nil && response == "" {
		Logger.Errorf("Failed to read response: %v", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
