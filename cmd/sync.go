package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perarneng/gmail2s3/pkg/api"
	"github.com/perarneng/gmail2s3/pkg/syncer"
)

var (
	syncQuery    queryFlags
	syncInfo     bool
	syncWebhooks []string
	syncSetLabel string
)

var syncCmd = &cobra.Command{
	Use:   "gmail-sync",
	Short: "Sync emails to S3",
	Long: `Upload the attachments and a JSON dump of every matching message to S3,
calling the configured webhooks for each upload and each synced message.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringArrayVarP(&syncQuery.labels, "labels", "l", nil, "Label to match, repeat to require several: -l label1 -l label2")
	syncCmd.Flags().StringArrayVarP(&syncQuery.excludeLabels, "exclude-labels", "e", nil, "Label to exclude: -e label1 -e label2")
	syncCmd.Flags().StringVarP(&syncQuery.before, "before", "b", "", "Match emails sent before [date]. ISO format: YYYY-MM-DD[THH:MM:SS]")
	syncCmd.Flags().StringVarP(&syncQuery.after, "after", "a", "", "Match emails sent after [date]. ISO format: YYYY-MM-DD[THH:MM:SS]")
	syncCmd.Flags().BoolVarP(&syncInfo, "info", "i", false, "Only return the number of emails matching the query")
	syncCmd.Flags().StringArrayVarP(&syncWebhooks, "webhooks", "w", nil,
		`Webhooks as a json/yaml file or inline: '{"webhooks": [{"endpoint": "https://example.com/hook", "event": "upload_attachment", "token": "t", "headers": {}, "params": {}, "verify_ssl": true}]}'`)
	syncCmd.Flags().StringVar(&syncSetLabel, "set-label", "", "Label to set on successfully synced emails")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	query, err := syncQuery.build(cfg)
	if err != nil {
		return err
	}
	subs, err := loadWebhooks(syncWebhooks)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Connecting to Gmail API...")
	sy, err := syncer.NewFactory(cfg, log).NewSyncer(ctx, query, subs, cfg.S3)
	if err != nil {
		return err
	}
	log.Debug(fmt.Sprintf("Gmail filter: %s", sy.Query().GmailFilter()))

	if syncInfo {
		info, err := sy.Info(ctx)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), info)
	}

	results, err := sy.SyncAll(ctx, syncSetLabel)
	if err != nil {
		if len(results) > 0 {
			log.Warn(fmt.Sprintf("%d messages were synced before the failure", len(results)))
		}
		return err
	}
	return render(cmd.OutOrStdout(), api.SyncResponse{SyncedEmails: results, Total: len(results)})
}
