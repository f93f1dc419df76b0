package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/utils"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Guided menu for sending, receiving and decrypting",
	Long: `Walks through a transfer step by step. A rejected security code or an
unreachable receiver is turned into a prompt instead of ending the
program, and the envelope built for a send is reused across retries.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting interactive mode")
		if stdin == os.Stdin && utils.IsTerminal() {
			if err := utils.ClearScreen(); err != nil {
				Logger.Debugf("Could not clear screen: %v", err)
			}
		}
		fmt.Println(ui.Banner("SecureTransfer"))
		return runMenu(cmd.Context())
	},
}

type menuItem struct {
	label  string
	action func(ctx context.Context) error
}

func mainMenu() []menuItem {
	return []menuItem{
		{"Send a file or folder", interactiveSend},
		{"Receive", interactiveReceive},
		{"Decrypt a received envelope", interactiveDecrypt},
		{"Validate an envelope", interactiveValidate},
		{"Show connection info", interactiveInfo},
		{"Clear transfer history", interactiveClearHistory},
	}
}

// runMenu loops until the operator exits or input ends. Failures inside an
// action are reported and the menu is shown again; only cancellation ends
// the loop with an error.
func runMenu(ctx context.Context) error {
	items := mainMenu()
	for {
		fmt.Println()
		for i, item := range items {
			fmt.Printf("  %d. %s\n", i+1, item.label)
		}
		fmt.Println("  0. Exit")

		choice, err := promptLine("Choose an option", "")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if choice == "0" || choice == "q" {
			fmt.Println("Bye.")
			return nil
		}

		var selected *menuItem
		for i := range items {
			if choice == fmt.Sprint(i+1) {
				selected = &items[i]
			}
		}
		if selected == nil {
			fmt.Println(ui.Cross() + " Unknown option " + ui.Highlight.Sprint(choice))
			continue
		}

		if err := selected.action(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return err
			}
			fmt.Println(failureMessage(err))
		}
	}
}

// selectPath asks for an existing file or folder. An empty answer means the
// operator backed out and yields ok == false.
func selectPath(prompt string) (path string, ok bool, err error) {
	for {
		answer, err := promptLine(prompt+" (empty to go back)", "")
		if err != nil {
			return "", false, err
		}
		if answer == "" {
			return "", false, nil
		}
		if _, err := os.Stat(answer); err == nil {
			return answer, true, nil
		}
		fmt.Println(ui.Cross() + " No such file or folder: " + ui.Path.Sprint(answer))
	}
}

func interactiveSend(ctx context.Context) error {
	path, ok, err := selectPath("File or folder to send")
	if err != nil || !ok {
		return err
	}
	host, err := promptLine("Receiver address (empty to go back)", "")
	if err != nil || host == "" {
		return err
	}
	port, err := promptPort("Receiver port", env.Config.Network.Port)
	if err != nil {
		return err
	}

	spinner, cleanup := startSpinner("Packaging "+path+"...", verbose)
	pkg, err := workflows.Prepare(ctx, env, workflows.PrepareOptions{InputPath: path})
	if err != nil {
		spinner.FinalMSG = failureMessage(err)
		cleanup()
		return nil
	}
	spinner.FinalMSG = ui.Check() + " Packaged " + ui.Path.Sprint(pkg.Filename) + " (" + ui.FormatBytes(pkg.Size) + ")"
	cleanup()

	res, err := workflows.SendWithRetry(ctx, env, workflows.RetryOptions{
		Package: pkg,
		Target: workflows.DeliverOptions{
			Host:     host,
			Port:     port,
			Progress: progressPrinter("Sending"),
		},
		Prompter: terminalPrompter{},
		OnState: func(state workflows.RetryState, attempt int) {
			Logger.Debugf("Send state %s after %d attempts", state, attempt)
		},
	})
	if err != nil {
		return err
	}

	switch res.State {
	case workflows.RetryDelivered:
		fmt.Println(ui.Check() + " Sent to " + ui.Highlight.Sprint(res.Result.Addr) +
			fmt.Sprintf(" after %d attempt(s)", res.Attempts))
		fmt.Println(ui.Arrow() + " Session " + ui.Highlight.Sprint(pkg.Session.ID) + ", hash " + ui.Muted.Sprint(pkg.Hash))
	case workflows.RetryAbandoned:
		fmt.Println(ui.Arrow() + " Send cancelled. The envelope is kept at " + ui.Path.Sprint(pkg.EnvelopePath))
	}
	return nil
}

// terminalPrompter drives the send retry loop from the terminal.
type terminalPrompter struct{}

func (terminalPrompter) Code(attempt, maxAttempts int, lastErr error) (string, bool, error) {
	if lastErr != nil {
		fmt.Println(failureMessage(lastErr))
	}
	code, err := promptCode(fmt.Sprintf("Security code, attempt %d of %d (empty to cancel)", attempt, maxAttempts))
	if err != nil {
		return "", false, err
	}
	if code == "" {
		return "", false, nil
	}
	return code, true, nil
}

func (terminalPrompter) Endpoint(current workflows.DeliverOptions, lastErr error) (string, int, bool, error) {
	if lastErr != nil {
		fmt.Println(failureMessage(lastErr))
	}
	if !confirm("Try again, possibly with another address?") {
		return "", 0, false, nil
	}
	host, err := promptLine("Receiver address", current.Host)
	if err != nil {
		return "", 0, false, err
	}
	port, err := promptPort("Receiver port", current.Port)
	if err != nil {
		return "", 0, false, err
	}
	return host, port, true, nil
}

func interactiveReceive(ctx context.Context) error {
	requested, err := promptCode("Security code senders must present (empty for a random one)")
	if err != nil {
		return err
	}
	code, generated, err := workflows.SessionCode(env, requested)
	if err != nil {
		return err
	}

	// A generated code goes with a free port, both shown to the operator.
	port := 0
	if generated {
		fmt.Println(ui.Arrow() + " Security code for this session: " + ui.Highlight.Sprint(code))
	} else if port, err = promptPort("Port to listen on", env.Config.Network.Port); err != nil {
		return err
	}

	for {
		result, err := workflows.Receive(ctx, env, workflows.ReceiveOptions{
			Port: port,
			Code: code,
			OnListening: func(addr net.Addr) {
				fmt.Println(ui.Arrow() + " Waiting on " + ui.Highlight.Sprintf("%s:%d", utils.LocalIP(), addr.(*net.TCPAddr).Port) +
					". Press Ctrl+C to stop.")
			},
			OnAuthFailure: func(peer string) {
				fmt.Println(ui.Caution() + " Rejected " + peer + ": wrong security code")
			},
			Progress: progressPrinter("Receiving"),
		})
		if err == nil {
			printReceived(result)
			return receiverMenu(ctx, result)
		}
		if ctx.Err() != nil {
			return err
		}
		fmt.Println(failureMessage(err))
		if !confirm("Wait for another sender?") {
			return nil
		}
	}
}

// receiverMenu offers the follow-up actions for a received envelope.
func receiverMenu(ctx context.Context, result *workflows.ReceiveResult) error {
	envelope := result.Received.Path
	for {
		fmt.Println()
		fmt.Println("  1. Decrypt and extract")
		fmt.Println("  2. Validate only")
		fmt.Println("  0. Back")

		choice, err := promptLine("Choose an option", "")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			return decryptEnvelope(ctx, envelope)
		case "2":
			if err := validateEnvelope(ctx, envelope); err != nil {
				return err
			}
		case "0", "":
			fmt.Println(ui.Arrow() + " Envelope kept at " + ui.Path.Sprint(envelope))
			return nil
		default:
			fmt.Println(ui.Cross() + " Unknown option " + ui.Highlight.Sprint(choice))
		}
	}
}

func interactiveDecrypt(ctx context.Context) error {
	path, ok, err := selectPath("Envelope to decrypt")
	if err != nil || !ok {
		return err
	}
	return decryptEnvelope(ctx, path)
}

func interactiveValidate(ctx context.Context) error {
	path, ok, err := selectPath("Envelope to validate")
	if err != nil || !ok {
		return err
	}
	return validateEnvelope(ctx, path)
}

func decryptEnvelope(ctx context.Context, path string) error {
	result, err := workflows.Decrypt(ctx, env, workflows.DecryptOptions{EnvelopePath: path})
	if err != nil {
		return err
	}
	fmt.Println(ui.Check() + " Integrity verified " + ui.Muted.Sprint(result.Hash))
	fmt.Println(ui.Check() + fmt.Sprintf(" Extracted %d entries to ", result.Entries) + ui.Path.Sprint(result.Dir))
	return nil
}

func validateEnvelope(ctx context.Context, path string) error {
	result, err := workflows.Validate(ctx, env, path)
	if err != nil {
		return err
	}
	fmt.Println(ui.Check() + " Envelope is authentic and intact, SHA-256 " + ui.Highlight.Sprint(result.Hash))
	return nil
}

func interactiveClearHistory(ctx context.Context) error {
	if !confirm("Delete every session in " + env.Settings.TransfersPath + "?") {
		fmt.Println(ui.Arrow() + " Nothing was deleted")
		return nil
	}
	result, err := workflows.ClearHistory(ctx, env)
	if err != nil {
		return err
	}
	fmt.Printf("%s Removed %d sessions\n", ui.Check(), result.Removed)
	return nil
}

func interactiveInfo(ctx context.Context) error {
	result, err := workflows.Info(ctx, env)
	if err != nil {
		return err
	}
	fmt.Printf("This machine is %s at %s\n", ui.Highlight.Sprint(result.Identity.Hostname),
		ui.Highlight.Sprintf("%s:%d", result.IP, result.Port))
	return nil
}
