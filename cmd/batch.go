package cmd

import (
	"errors"
	"fmt"
	"strings"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/remote"
	"github.com/esicorp/securetransfer/internal/ui"
	"github.com/esicorp/securetransfer/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	batchHost  string
	batchUser  string
	batchPort  int
	batchPath  string
	batchAll   bool
	batchUnzip bool
)

func init() {
	batchCmd.Flags().StringVar(&batchHost, "host", "", "SFTP server (default from configuration)")
	batchCmd.Flags().StringVar(&batchUser, "user", "", "SFTP user (default from configuration)")
	batchCmd.Flags().IntVar(&batchPort, "port", 0, "SSH port (default from configuration)")
	batchCmd.Flags().StringVar(&batchPath, "path", "", "remote directory, ending in / (default from configuration)")
	batchCmd.Flags().BoolVar(&batchAll, "all", false, "bundle every outbox file, not only names like Area-DD-MM-YYYY.ext")
	batchCmd.Flags().BoolVar(&batchUnzip, "unzip", false, "extract each bundle on the server after upload")
}

func resetBatchCommandState() {
	batchHost = ""
	batchUser = ""
	batchPort = 0
	batchPath = ""
	batchAll = false
	batchUnzip = false
}

var batchCmd = &cobra.Command{
	Use:   "batch [file|folder...]",
	Short: "Bundles files with the legacy codec and uploads them over SFTP",
	Long: `Each file is hashed, encrypted with AES-256-CBC and zipped together with
its hash record and a metadata note. The bundles are uploaded one at a
time and authenticated with the local RSA key, which is generated on
first use.

Without arguments the outbox folder is scanned for files named like
Sales-01-02-2024.xlsx; pass --all to take every file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting batch command")
		spinner, cleanup := startSpinner("Bundling and uploading...", verbose)
		defer cleanup()

		result, err := workflows.BatchSend(cmd.Context(), env, workflows.BatchOptions{
			Host:       batchHost,
			Port:       batchPort,
			User:       batchUser,
			RemotePath: batchPath,
			Paths:      args,
			All:        batchAll,
			Unzip:      batchUnzip,
			OnUpload: func(u *remote.UploadResult) {
				Logger.Infof("Uploaded %s", u.RemotePath)
			},
		})

		var b strings.Builder
		if result != nil {
			for _, u := range result.Uploads {
				fmt.Fprintf(&b, "%s Uploaded %s (%s)\n", ui.Check(), ui.Path.Sprint(u.RemotePath), ui.FormatBytes(u.Size))
			}
			for _, z := range result.Unzips {
				if z.ExitStatus != 0 {
					fmt.Fprintf(&b, "%s Remote unzip exited with %d: %s\n", ui.Caution(), z.ExitStatus, strings.TrimSpace(z.Output))
				}
			}
		}

		if errors.Is(err, kerrors.ErrRemoteAuthRequired) {
			spinner.FinalMSG = b.String() + failureMessage(err) + "\n\n" + workflows.Enrollment(env, batchHost, batchUser)
			return &ReportedError{Err: err}
		}
		if err != nil {
			spinner.FinalMSG = b.String() + failureMessage(err)
			return &ReportedError{Err: err}
		}

		spinner.FinalMSG = b.String() + ui.Check() + fmt.Sprintf(" %d bundles uploaded to ", len(result.Uploads)) + ui.Highlight.Sprint(result.Target)
		return nil
	},
}

var legacyDecryptCmd = &cobra.Command{
	Use:   "legacy-decrypt <dir>",
	Short: "Restores uploaded bundles on the receiving server",
	Long: `Unpacks every bundle in the directory, decrypts each .enc file and checks
it against its .hash.txt record. Restored files whose hash does not match
are deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting legacy-decrypt command")
		spinner, cleanup := startSpinner("Restoring bundles in "+args[0]+"...", verbose)
		defer cleanup()

		result, err := workflows.LegacyDecrypt(cmd.Context(), env, args[0])
		if err != nil {
			return failWith(spinner, err)
		}

		var b strings.Builder
		for _, r := range result.Report.Restored {
			mark := ui.Check()
			note := "verified"
			if !r.Verified {
				mark, note = ui.Caution(), "no hash record"
			}
			fmt.Fprintf(&b, "%s %s %s\n", mark, ui.Path.Sprint(r.Output), ui.Muted.Sprint(note))
		}
		for _, f := range result.Report.Failed {
			fmt.Fprintf(&b, "%s %s: %v\n", ui.Cross(), ui.Path.Sprint(f.Envelope), f.Err)
		}

		if len(result.Report.Failed) > 0 {
			err := fmt.Errorf("%d of %d envelopes could not be restored", len(result.Report.Failed),
				len(result.Report.Failed)+len(result.Report.Restored))
			spinner.FinalMSG = b.String() + failureMessage(err)
			return &ReportedError{Err: err}
		}
		if len(result.Report.Restored) == 0 {
			spinner.FinalMSG = ui.Caution() + " No envelopes found in " + ui.Path.Sprint(args[0])
			return nil
		}

		spinner.FinalMSG = b.String() + ui.Check() + fmt.Sprintf(" Restored %d files", len(result.Report.Restored))
		return nil
	},
}
