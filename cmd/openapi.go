package cmd

import (
	"github.com/spf13/cobra"

	"github.com/perarneng/gmail2s3/pkg/openapi"
	"github.com/perarneng/gmail2s3/pkg/version"
)

var openapiCmd = &cobra.Command{
	Use:   "openapi",
	Short: "Print the OpenAPI document of the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openapi.Document(version.Version)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), doc)
	},
}

func init() {
	rootCmd.AddCommand(openapiCmd)
}
