package cmd

import (
	"fmt"

	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Shows how peers can reach this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := workflows.Info(cmd.Context(), env)
		if err != nil {
			return err
		}

		id := result.Identity
		fmt.Printf("Host:       %s\n", ui.Highlight.Sprint(id.Hostname))
		fmt.Printf("User:       %s\n", id.User)
		fmt.Printf("System:     %s\n", id.System)
		fmt.Printf("Address:    %s\n", ui.Highlight.Sprintf("%s:%d", result.IP, result.Port))
		fmt.Printf("Transfers:  %s %s\n", ui.Path.Sprint(result.TransfersPath), ui.Muted.Sprintf("%d sessions", result.Sessions))

		if result.PublicKeyPath == "" {
			fmt.Println(ui.Arrow() + " No SFTP keypair yet. Run " + ui.Code.Sprint("securetransfer keys generate") + " to create one")
			return nil
		}
		fmt.Printf("Public key: %s %s\n\n", ui.Path.Sprint(result.PublicKeyPath), ui.Muted.Sprint(result.Fingerprint))
		fmt.Println(workflows.Enrollment(env, "", ""))
		return nil
	},
}
