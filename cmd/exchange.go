package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/esicorp/securetransfer/internal/keyexchange"
	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/utils"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	exchangePort int
	exchangeYes  bool
)

func init() {
	exchangeCmd.PersistentFlags().IntVarP(&exchangePort, "port", "p", 0, "key exchange port (default from configuration)")
	exchangeCmd.PersistentFlags().BoolVarP(&exchangeYes, "yes", "y", false, "trust the peer key without asking")

	exchangeCmd.AddCommand(exchangeServeCmd)
	exchangeCmd.AddCommand(exchangeConnectCmd)
}

func resetExchangeCommandState() {
	exchangePort = 0
	exchangeYes = false
}

var exchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Trades public keys with another machine so SFTP works without manual setup",
	Long: `One side runs 'exchange serve', the other 'exchange connect <host>'. The
server adds the client's key to authorized_keys and the client records the
server's key in known_hosts. Each side confirms the peer's fingerprint
before anything is written.`,
}

var exchangeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Waits for a client and installs its key in authorized_keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting exchange serve command")
		result, err := workflows.ExchangeServe(cmd.Context(), env, workflows.ExchangeOptions{
			Port:      exchangePort,
			Confirmer: exchangeConfirmer(),
			OnListening: func(addr net.Addr) {
				fmt.Println(ui.Arrow() + " Waiting for a key exchange on " +
					ui.Highlight.Sprintf("%s:%d", utils.LocalIP(), addr.(*net.TCPAddr).Port))
			},
		})
		return reportExchange(result, err)
	},
}

var exchangeConnectCmd = &cobra.Command{
	Use:   "connect <host>",
	Short: "Contacts a server and records its key in known_hosts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting exchange connect command")
		result, err := workflows.ExchangeConnect(cmd.Context(), env, args[0], workflows.ExchangeOptions{
			Port:      exchangePort,
			Confirmer: exchangeConfirmer(),
		})
		return reportExchange(result, err)
	},
}

func exchangeConfirmer() keyexchange.Confirmer {
	return keyexchange.ConfirmFunc(func(ctx context.Context, role keyexchange.Role, peer keyexchange.Peer) (bool, error) {
		fmt.Println()
		fmt.Printf("Peer:        %s@%s (%s) at %s\n", peer.Identity.User, peer.Identity.Hostname, peer.Identity.System, peer.Addr)
		if peer.Key.Bits > 0 {
			fmt.Printf("Key:         %s, %d bits\n", peer.Key.Type, peer.Key.Bits)
		} else {
			fmt.Printf("Key:         %s\n", peer.Key.Type)
		}
		fmt.Printf("Fingerprint: %s\n", ui.Highlight.Sprint(peer.Fingerprint))
		if exchangeYes {
			return true, nil
		}

		target := "known_hosts"
		if role == keyexchange.RoleServer {
			target = "authorized_keys"
		}
		return confirm("Add this key to " + target + "?"), nil
	})
}

func reportExchange(result *keyexchange.Result, err error) error {
	if err != nil {
		fmt.Println(failureMessage(err))
		return &ReportedError{Err: err}
	}

	if result.AlreadyTrusted {
		fmt.Println(ui.Check() + " Key already configured in " + ui.Path.Sprint(result.StorePath))
	} else {
		fmt.Println(ui.Check() + " Key added to " + ui.Path.Sprint(result.StorePath))
	}
	if !result.PeerAcknowledged {
		fmt.Println(ui.Caution() + " The peer did not confirm the exchange; check its output")
	}
	return nil
}
