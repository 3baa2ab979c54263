// Package cli implements the channel-crawler command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// Version is reported by --version and sent in the User-Agent header.
var Version = "0.1.0"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "channel-crawler",
		Short: "Discover Twitch channels by keyword",
		Long: `channel-crawler searches the Twitch Helix API for channels matching a list
of keywords, enriches each channel with its live stream, latest video, top clip
and next scheduled broadcast, and exports the records as JSON.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"settings file (default config/settings.json, then config/settings.example.json)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the settings")

	cmd.AddCommand(newCrawlCmd(&opts))
	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
