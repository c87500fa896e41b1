package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vipul43/gigwatch/internal/models"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the job log",
		RunE:  runOnce,
	})
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := a.Watcher(ctx)
	if err != nil {
		return err
	}

	job, runErr := w.RunNow(ctx, models.TriggerManual)
	if job != nil {
		out := cmd.OutOrStdout()
		if textOutput() {
			writeJob(out, job)
		} else if err := printJSON(out, job); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}
