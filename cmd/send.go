package cmd

import (
	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/utils"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	sendFile string
	sendDest string
	sendPort int
	sendCode string
)

func init() {
	sendCmd.Flags().StringVarP(&sendFile, "file", "a", "", "file or folder to send")
	sendCmd.Flags().StringVarP(&sendDest, "dest", "d", "", "receiver address")
	sendCmd.Flags().IntVarP(&sendPort, "port", "p", 0, "receiver port (default from configuration)")
	sendCmd.Flags().StringVarP(&sendCode, "code", "c", "", "security code agreed with the receiver")
	_ = sendCmd.MarkFlagRequired("file")
	_ = sendCmd.MarkFlagRequired("dest")
	_ = sendCmd.MarkFlagRequired("code")
}

func resetSendCommandState() {
	sendFile = ""
	sendDest = ""
	sendPort = 0
	sendCode = ""
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Packages a file or folder and sends it to a waiting receiver",
	Long: `Compresses, hashes and encrypts the input, then sends the envelope to a
receiver started with 'securetransfer receive'. Both sides must use the
same security code. The send is attempted once; use the interactive mode
to retry with a different code.`,
	Example: `  securetransfer send -a report.pdf -d 192.168.1.20 -c 4242`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting send command")
		port := sendPort
		if port == 0 {
			port = env.Config.Network.Port
		}
		Logger.Debugf("Destination %s:%d, code %s", sendDest, port, utils.Mask(sendCode))

		spinner, cleanup := startSpinner("Packaging and sending "+sendFile+"...", verbose)
		defer cleanup()

		result, err := workflows.Send(cmd.Context(), env, workflows.SendOptions{
			InputPath: sendFile,
			DeliverOptions: workflows.DeliverOptions{
				Host: sendDest,
				Port: port,
				Code: sendCode,
			},
		})
		if err != nil {
			return failWith(spinner, err)
		}
		pkg := result.Package
		Logger.Infof("Sent %s (%d bytes)", pkg.EnvelopePath, result.BytesSent)

		spinner.FinalMSG = ui.Check() + " Sent " + ui.Path.Sprint(pkg.Filename) +
			" (" + ui.FormatBytes(result.BytesSent) + ") to " + ui.Highlight.Sprint(result.Addr) + "\n" +
			ui.Arrow() + " Session " + ui.Highlight.Sprint(pkg.Session.ID) + ", hash " + ui.Muted.Sprint(pkg.Hash)
		return nil
	},
}
