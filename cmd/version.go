package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/perarneng/gmail2s3/pkg/client"
	"github.com/perarneng/gmail2s3/pkg/version"
)

var (
	serverHost string
	insecure   bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show client and server versions",
	RunE:  runVersion,
}

type versionOutput struct {
	APIVersion    interface{} `json:"api-version" yaml:"api-version"`
	ClientVersion string      `json:"client-version" yaml:"client-version"`
}

func init() {
	versionCmd.Flags().StringVar(&serverHost, "server-host", "", "gmail2s3 server URL (defaults to gmail2s3.url)")
	versionCmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS verification")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	host := serverHost
	if host == "" {
		host = cfg.Gmail2S3.URL
	}
	c := client.New(host, client.Options{Token: cfg.Gmail2S3.Token, Verify: !insecure, Timeout: 10 * time.Second})

	out := versionOutput{ClientVersion: version.Version}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	info, err := c.Version(ctx)
	if err != nil {
		log.Debug("version request failed: " + err.Error())
		out.APIVersion = ".. Connection error"
	} else {
		out.APIVersion = info
	}
	return render(cmd.OutOrStdout(), out)
}
