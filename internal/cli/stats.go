package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vipul43/gigwatch/internal/service"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show stored request counts per category",
		RunE:  runStats,
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	counts, err := a.Requests.StatsByCategory(ctx)
	if err != nil {
		return err
	}
	active, err := a.Categories.ListActive(ctx)
	if err != nil {
		return err
	}

	stats := service.SummarizeStats(counts, active)
	if textOutput() {
		writeStats(cmd.OutOrStdout(), stats)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), stats)
}

func writeStats(w io.Writer, stats service.Stats) {
	if stats.Total == 0 {
		fmt.Fprintln(w, "no requests stored")
		return
	}
	for _, row := range stats.Categories {
		fmt.Fprintf(w, "%-24s %6d  %5.1f%%\n", row.DisplayName, row.Count, row.Percent)
	}
	fmt.Fprintf(w, "%-24s %6d\n", "total", stats.Total)
}
