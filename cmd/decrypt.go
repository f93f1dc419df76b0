package cmd

import (
	"fmt"

	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var decryptOutput string

func init() {
	decryptCmd.Flags().StringVarP(&decryptOutput, "output", "o", "", "directory to extract into (default: next to the envelope)")
}

func resetDecryptCommandState() {
	decryptOutput = ""
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <envelope>",
	Short: "Decrypts a received envelope and extracts its files",
	Long: `Authenticates the envelope, verifies its SHA-256 hash and extracts the
archive into a fresh decrypted_files directory. Nothing is written when a
check fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting decrypt command")
		spinner, cleanup := startSpinner("Decrypting "+args[0]+"...", verbose)
		defer cleanup()

		result, err := workflows.Decrypt(cmd.Context(), env, workflows.DecryptOptions{
			EnvelopePath: args[0],
			OutputDir:    decryptOutput,
		})
		if err != nil {
			return failWith(spinner, err)
		}

		spinner.FinalMSG = ui.Check() + " Integrity verified " + ui.Muted.Sprint(result.Hash) + "\n" +
			ui.Check() + fmt.Sprintf(" Extracted %d entries to ", result.Entries) + ui.Path.Sprint(result.Dir)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <envelope>",
	Short: "Checks an envelope's authenticity and integrity without extracting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting validate command")
		spinner, cleanup := startSpinner("Validating "+args[0]+"...", verbose)
		defer cleanup()

		result, err := workflows.Validate(cmd.Context(), env, args[0])
		if err != nil {
			return failWith(spinner, err)
		}

		spinner.FinalMSG = ui.Check() + " Envelope is authentic and intact\n" +
			ui.Arrow() + " SHA-256 " + ui.Highlight.Sprint(result.Hash) + ", archive " + ui.FormatBytes(int64(result.ArchiveSize))
		return nil
	},
}
