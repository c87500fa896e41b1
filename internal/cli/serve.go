package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
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
	srv := a.Server(w)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, a.Config.HTTPAddr, a.Config.ShutdownTimeout)
	})

	err = g.Wait()
	a.Logger.Info("application stopped")
	return err
}
