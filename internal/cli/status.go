package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/vipul43/gigwatch/internal/models"
	"github.com/vipul43/gigwatch/internal/repository"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the most recent pipeline run",
		RunE:  runStatus,
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.Jobs.Last(ctx)
	if errors.Is(err, repository.ErrJobLogNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs yet")
		return nil
	}
	if err != nil {
		return err
	}

	if textOutput() {
		writeJob(cmd.OutOrStdout(), job)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), job)
}

func writeJob(w io.Writer, job *models.JobLog) {
	fmt.Fprintf(w, "run %s (%s): %s\n", job.ID, job.Trigger, job.Status)
	fmt.Fprintf(w, "  started   %s\n", job.StartedAt.Format(time.RFC3339))
	if job.FinishedAt != nil {
		fmt.Fprintf(w, "  duration  %s\n", job.Duration().Round(time.Second))
	}
	m := job.JobMetrics
	fmt.Fprintf(w, "  sources   %d processed, %d skipped\n", m.SourcesProcessed, m.SourcesSkipped)
	fmt.Fprintf(w, "  messages  %d found\n", m.MessagesFound)
	fmt.Fprintf(w, "  records   %d extracted, %d saved, %d evicted\n", m.RecordsExtracted, m.RecordsSaved, m.RecordsEvicted)
	if job.ErrorDetail != nil {
		fmt.Fprintf(w, "  error     %s\n", *job.ErrorDetail)
	}
}
