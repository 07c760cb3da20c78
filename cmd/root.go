package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/perarneng/gmail2s3/pkg/config"
	"github.com/perarneng/gmail2s3/pkg/interfaces"
	"github.com/perarneng/gmail2s3/pkg/logger"
)

var (
	confFile     string
	outputFormat string
	jsonLog      bool
	debugLog     bool

	// logger built by setup, flushed by Execute
	activeLog interfaces.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gmail2s3",
	Short: "Sync Gmail messages and attachments to S3",
	Long: `gmail2s3 lists Gmail messages matching a query, uploads their attachments
and a JSON dump of each message to an S3 bucket, notifies webhooks along the
way and labels the synced messages. It can also forward messages and run
the same pipeline behind an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&confFile, "conf", "c", "", "Path to a YAML configuration file (or set GMAIL2S3_CONF_FILE)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Log as JSON (or set GMAIL2S3_JSONLOG=true)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logs (or set GMAIL2S3_DEBUG=true)")
}

func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync(activeLog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger shared by all commands.
func setup() (*config.Config, interfaces.Logger, error) {
	cfg, err := config.Load(confFile)
	if err != nil {
		return nil, nil, err
	}
	if jsonLog {
		cfg.Gmail2S3.JSONLog = true
	}
	if debugLog {
		cfg.Gmail2S3.Debug = true
	}
	log := logger.NewLogger(logger.Options{JSON: cfg.Gmail2S3.JSONLog, Debug: cfg.Gmail2S3.Debug})
	activeLog = log
	return cfg, log, nil
}

// render writes v to w in the --output format.
func render(w io.Writer, v interface{}) error {
	switch outputFormat {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q: expected json or yaml", outputFormat)
	}
}
