package cmd

import (
	"fmt"
	"net"

	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/utils"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	receiveCode    string
	receivePort    int
	receiveDecrypt bool
)

func init() {
	receiveCmd.Flags().StringVarP(&receiveCode, "code", "c", "", "security code senders must present (random when omitted)")
	receiveCmd.Flags().IntVarP(&receivePort, "port", "p", -1, "port to listen on, 0 picks a free one (default from configuration, free port with a random code)")
	receiveCmd.Flags().BoolVar(&receiveDecrypt, "decrypt", false, "decrypt and extract the envelope once received")
}

func resetReceiveCommandState() {
	receiveCode = ""
	receivePort = -1
	receiveDecrypt = false
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Waits for one sender and stores the envelope it sends",
	Long: `Listens for a sender presenting the security code. Senders with a wrong
code are turned away and the receiver keeps waiting. Without --code a
random four digit code is generated and shown. Press Ctrl+C to stop.`,
	Example: `  securetransfer receive -c 4242 --decrypt
  securetransfer receive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting receive command")

		code, generated, err := workflows.SessionCode(env, receiveCode)
		if err != nil {
			fmt.Println(failureMessage(err))
			return &ReportedError{Err: err}
		}

		port := receivePort
		if port < 0 {
			port = env.Config.Network.Port
			if generated {
				port = 0
			}
		}

		shown := ui.Muted.Sprint(utils.Mask(code))
		if generated {
			fmt.Println(ui.Arrow() + " Security code for this session: " + ui.Highlight.Sprint(code))
			shown = ui.Highlight.Sprint(code)
		}

		result, err := workflows.Receive(cmd.Context(), env, workflows.ReceiveOptions{
			Port:    port,
			Code:    code,
			Decrypt: receiveDecrypt,
			OnListening: func(addr net.Addr) {
				fmt.Println(ui.Arrow() + " Waiting on " + ui.Highlight.Sprintf("%s:%d", utils.LocalIP(), addr.(*net.TCPAddr).Port) +
					" with code " + shown)
			},
			OnAuthFailure: func(peer string) {
				Logger.WarnfUser("Rejected %s: wrong security code", peer)
			},
			Progress: progressPrinter("Receiving"),
		})
		if result != nil {
			printReceived(result)
		}
		if err != nil {
			fmt.Println(failureMessage(err))
			return &ReportedError{Err: err}
		}
		return nil
	},
}

func printReceived(result *workflows.ReceiveResult) {
	rec := result.Received
	fmt.Println(ui.Check() + " Received " + ui.Path.Sprint(rec.Filename) + " (" + ui.FormatBytes(rec.Size) + ") from " + ui.Highlight.Sprint(rec.Peer))
	fmt.Println(ui.Arrow() + " Envelope stored at " + ui.Path.Sprint(rec.Path))
	if d := result.Decrypted; d != nil {
		fmt.Println(ui.Check() + " Integrity verified, " + fmt.Sprint(d.Entries) + " entries extracted to " + ui.Path.Sprint(d.Dir))
	}
}
