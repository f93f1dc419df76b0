package cmd

import (
	"fmt"

	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var keysForce bool

func init() {
	keysGenerateCmd.Flags().BoolVar(&keysForce, "force", false, "replace an existing keypair")

	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysShowCmd)
}

func resetKeysCommandState() {
	keysForce = false
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manages the RSA keypair used for SFTP uploads",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Creates the keypair if it does not exist yet",
	Long: `Creates a 4096-bit RSA keypair in the keys folder. An existing keypair
is kept unless --force is given; replacing it means every server has to
trust the new public key again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting keys generate command")
		if keysForce && env.Keys().Exists() {
			Logger.WarnfUser("Replacing the existing keypair; servers that trusted it must be enrolled again")
		}

		spinner, cleanup := startSpinner("Generating RSA keypair...", verbose)
		defer cleanup()

		result, err := workflows.GenerateKeys(cmd.Context(), env, keysForce)
		if err != nil {
			return failWith(spinner, err)
		}

		status := "Keypair already exists at "
		if result.Keypair.Generated {
			status = "Keypair created at "
		}
		spinner.FinalMSG = ui.Check() + " " + status + ui.Path.Sprint(result.Keypair.PublicPath) + "\n" +
			ui.Arrow() + " Fingerprint " + ui.Highlight.Sprint(result.Fingerprint)
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the public key for enrollment on a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := workflows.ShowKeys(cmd.Context(), env)
		if err != nil {
			fmt.Println(failureMessage(err))
			return &ReportedError{Err: err}
		}

		fmt.Println(result.PublicKey)
		fmt.Println(ui.Arrow() + " " + ui.Path.Sprint(result.Keypair.PublicPath) + " " + ui.Muted.Sprint(result.Fingerprint))
		return nil
	},
}
