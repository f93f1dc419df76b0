package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/esicorp/securetransfer/internal/configs"
	logger "github.com/esicorp/securetransfer/internal/logging"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	verbose    bool
	debug      bool
	configPath string
	baseDir    string
	Logger     logger.Logger

	// env is built once per invocation in PersistentPreRunE.
	env *workflows.Env

	RootCmd = &cobra.Command{
		Use:   "securetransfer",
		Short: "Encrypted file transfer over TCP or SFTP",
		Long: `securetransfer packages files and folders into authenticated, encrypted
envelopes and moves them between machines.

Transfers go either over a direct TCP connection guarded by a shared
security code, or as batch uploads to an SFTP server authenticated with
a local RSA key.

Run 'securetransfer interactive' for the guided menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.Name(), verbose, debug)
			return loadEnv()
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file")
	RootCmd.PersistentFlags().StringVar(&baseDir, "dir", ".", "base directory for transfers, keys and batch folders")

	RootCmd.AddCommand(sendCmd)
	RootCmd.AddCommand(receiveCmd)
	RootCmd.AddCommand(decryptCmd)
	RootCmd.AddCommand(validateCmd)
	RootCmd.AddCommand(batchCmd)
	RootCmd.AddCommand(legacyDecryptCmd)
	RootCmd.AddCommand(keysCmd)
	RootCmd.AddCommand(exchangeCmd)
	RootCmd.AddCommand(infoCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(interactiveCmd)
}

// loadEnv reads the configuration, assigns the installation identity on
// first use and derives the transfer key.
func loadEnv() error {
	path := configs.ResolvePath(configPath)
	Logger.Debugf("Loading configuration from %s", path)

	cfg, err := configs.Load(path)
	if err != nil {
		return err
	}

	if _, err := configs.EnsureIdentity(path, cfg); err != nil {
		// A read-only config location should not block transfers.
		Logger.Warnf("Could not persist installation identity: %v", err)
	}

	dir, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolving base directory: %w", err)
	}

	env, err = workflows.NewEnv(cfg, dir, Logger)
	if err != nil {
		return err
	}
	Logger.Debugf("Transfers in %s, keys in %s", env.Settings.TransfersPath, env.Settings.KeysPath)
	return nil
}

// Helper functions for testing

// GetRootCmd returns the RootCmd for testing.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// ResetGlobalState resets all global variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	configPath = ""
	baseDir = "."
	env = nil
	stdin = os.Stdin
	input = nil
	resetSendCommandState()
	resetReceiveCommandState()
	resetDecryptCommandState()
	resetBatchCommandState()
	resetKeysCommandState()
	resetExchangeCommandState()
	resetHistoryCommandState()
	resetCobraFlagState(RootCmd)
}

// resetCobraFlagState clears the Changed mark on every flag of cmd and its
// subcommands so required-flag checks start fresh between test runs.
func resetCobraFlagState(cmd *cobra.Command) {
	unmark := func(flag *pflag.Flag) {
		flag.Changed = false
	}
	cmd.Flags().VisitAll(unmark)
	cmd.PersistentFlags().VisitAll(unmark)
	for _, sub := range cmd.Commands() {
		resetCobraFlagState(sub)
	}
}
