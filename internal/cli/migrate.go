package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vipul43/gigwatch/internal/config"
	"github.com/vipul43/gigwatch/internal/database"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	cmd.Flags().Bool("version-only", false, "Print the current schema version without migrating")

	RootCmd.AddCommand(cmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	versionOnly, _ := cmd.Flags().GetBool("version-only")
	if !versionOnly {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
