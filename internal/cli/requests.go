package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vipul43/gigwatch/internal/models"
	"github.com/vipul43/gigwatch/internal/repository"
)

var (
	reqCategory string
	reqDays     int
	reqOffset   int
	reqLimit    int
)

func init() {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List stored freelance requests, newest first",
		RunE:  runRequests,
	}
	cmd.Flags().StringVarP(&reqCategory, "category", "c", "", "Category slug (empty or \"all\" for every category)")
	cmd.Flags().IntVar(&reqDays, "days", 7, "Only requests from the last N days")
	cmd.Flags().IntVar(&reqOffset, "offset", 0, "Skip this many requests")
	cmd.Flags().IntVarP(&reqLimit, "limit", "n", 5, "Maximum number of requests")

	RootCmd.AddCommand(cmd)
}

func runRequests(cmd *cobra.Command, args []string) error {
	if reqDays <= 0 || reqOffset < 0 || reqLimit <= 0 {
		return fmt.Errorf("--days and --limit must be positive and --offset non-negative")
	}
	category := reqCategory
	if category == "all" {
		category = ""
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	items, total, err := a.Requests.Query(ctx, repository.RequestQuery{
		Category: category,
		Days:     reqDays,
		Offset:   reqOffset,
		Limit:    reqLimit,
	})
	if err != nil {
		return err
	}

	if textOutput() {
		writeRequests(cmd.OutOrStdout(), items, total, reqOffset)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"items":  items,
		"total":  total,
		"offset": reqOffset,
		"limit":  reqLimit,
	})
}

func writeRequests(w io.Writer, items []models.FreelanceRequest, total int64, offset int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no requests found")
		return
	}
	for i, r := range items {
		fmt.Fprintf(w, "%d. [%s] %s\n", offset+i+1, r.Category, r.Title)
		fmt.Fprintf(w, "   budget: %s  urgency: %s  posted: %s\n", r.Budget, r.Urgency, r.OccurredAt.Format("2006-01-02 15:04"))
		if len(r.Skills) > 0 {
			fmt.Fprintf(w, "   skills: %s\n", strings.Join(r.Skills, ", "))
		}
		if r.Contact != nil {
			fmt.Fprintf(w, "   contact: %s\n", *r.Contact)
		}
		fmt.Fprintf(w, "   %s\n", r.Description)
	}
	fmt.Fprintf(w, "showing %d-%d of %d\n", offset+1, offset+len(items), total)
}
