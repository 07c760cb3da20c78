package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perarneng/gmail2s3/pkg/syncer"
)

var (
	forwardQuery    queryFlags
	forwardTo       string
	forwardPrefix   string
	forwardRaw      bool
	forwardInfo     bool
	forwardSetLabel string
)

var forwardCmd = &cobra.Command{
	Use:   "gmail-forward",
	Short: "Forward emails to another email address",
	RunE:  runForward,
}

type forwardOutput struct {
	Total           int                    `json:"total" yaml:"total"`
	ForwardedEmails []syncer.ForwardResult `json:"forwarded_emails" yaml:"forwarded_emails"`
}

func init() {
	forwardCmd.Flags().StringVar(&forwardTo, "to", "", "Address to forward emails to")
	forwardCmd.Flags().StringVar(&forwardPrefix, "prefix", "", "Prefix added to the original subject")
	forwardCmd.Flags().StringArrayVarP(&forwardQuery.labels, "labels", "l", nil, "Label to match, repeat to require several: -l label1 -l label2")
	forwardCmd.Flags().StringArrayVarP(&forwardQuery.excludeLabels, "exclude-labels", "e", nil, "Label to exclude: -e label1 -e label2")
	forwardCmd.Flags().StringArrayVar(&forwardQuery.sender, "filter-sender", nil, "Sender (from) to match, repeatable")
	forwardCmd.Flags().StringArrayVar(&forwardQuery.to, "filter-to", nil, "Recipient to match, repeatable")
	forwardCmd.Flags().StringVarP(&forwardQuery.before, "before", "b", "", "Match emails sent before [date]. ISO format: YYYY-MM-DD[THH:MM:SS]")
	forwardCmd.Flags().StringVarP(&forwardQuery.after, "after", "a", "", "Match emails sent after [date]. ISO format: YYYY-MM-DD[THH:MM:SS]")
	forwardCmd.Flags().StringVar(&forwardSetLabel, "set-label", "", "Label to set on successfully forwarded emails")
	forwardCmd.Flags().BoolVarP(&forwardInfo, "info", "i", false, "Only return the number of emails matching the query")
	forwardCmd.Flags().BoolVarP(&forwardRaw, "raw", "r", false, "Forward the raw email, only the recipients change")
	_ = forwardCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(forwardCmd)
}

func runForward(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	query, err := forwardQuery.build(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// no bucket needed to forward
	s3 := cfg.S3
	s3.Bucket = ""
	sy, err := syncer.NewFactory(cfg, log).NewSyncer(ctx, query, nil, s3)
	if err != nil {
		return err
	}
	log.Debug(fmt.Sprintf("Gmail filter: %s", sy.Query().GmailFilter()))

	if forwardInfo {
		info, err := sy.Info(ctx)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), info)
	}

	results, err := sy.ForwardAll(ctx, forwardTo, forwardPrefix, forwardSetLabel, forwardRaw)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), forwardOutput{Total: len(results), ForwardedEmails: results})
}
