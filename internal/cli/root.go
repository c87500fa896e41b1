// Package cli implements the gigwatch commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vipul43/gigwatch/internal/app"
	"github.com/vipul43/gigwatch/internal/config"
)

var formatFlag string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "gigwatch",
	Short:         "Harvest freelance requests from public chats",
	Long:          "Reads public Telegram channels, extracts freelance requests with an LLM and serves them over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// setup loads configuration and opens storage. Callers must Close the app.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	return app.Open(ctx, cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func textOutput() bool {
	return formatFlag == "text"
}
