package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/perarneng/gmail2s3/pkg/gmail"
	"github.com/perarneng/gmail2s3/pkg/output"
)

var loginCmd = &cobra.Command{
	Use:   "gmail-login",
	Short: "Authorize gmail2s3 against a Gmail account and store the token",
	RunE:  runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	writer := output.NewFileWriter(cfg.Gmail2S3.DownloadDir, log)
	client := gmail.NewClient(cfg.GmailOptions(), writer, log)
	if err := client.Login(cmd.Context(), os.Stdin, cmd.OutOrStdout()); err != nil {
		return err
	}
	log.Info("Gmail token stored in " + cfg.Gmail.GmailToken)
	return nil
}
