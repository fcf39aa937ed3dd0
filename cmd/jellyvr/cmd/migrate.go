package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/jellyvr/internal/database/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Manage the database schema.

serve applies pending migrations on start; these commands are for inspecting
the schema or stepping back before a downgrade.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	migrateCmd.PersistentFlags().String("database", "", "Database DSN (defaults to the configured database)")
	migrateStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

func migratorFor(cmd *cobra.Command) (*migrations.Migrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if dsn, _ := cmd.Flags().GetString("database"); dsn != "" {
		cfg.Database.DSN = dsn
	}

	logger := slog.Default()
	db, err := connectDatabase(cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return newMigrator(db, logger), func() { _ = db.Close() }, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	migrator, done, err := migratorFor(cmd)
	if err != nil {
		return err
	}
	defer done()

	applied, err := migrator.Up(cmd.Context())
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
		return err
	}
	for _, v := range applied {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", v); err != nil {
			return err
		}
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	migrator, done, err := migratorFor(cmd)
	if err != nil {
		return err
	}
	defer done()

	version, err := migrator.Rollback(cmd.Context())
	if err != nil {
		return err
	}
	if version == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied.")
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", version)
	return err
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	migrator, done, err := migratorFor(cmd)
	if err != nil {
		return err
	}
	defer done()

	statuses, err := migrator.Status(cmd.Context())
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	return writeMigrationStatus(cmd.OutOrStdout(), statuses, asJSON)
}

func writeMigrationStatus(w io.Writer, statuses []migrations.MigrationStatus, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	rows := make([][]string, len(statuses))
	for i, st := range statuses {
		applied := "pending"
		if st.Applied() {
			applied = st.AppliedAt.Local().Format(time.DateTime)
		}
		rows[i] = []string{st.Version, st.Description, applied}
	}
	pending := func(row int) bool { return !statuses[row].Applied() }

	_, err := fmt.Fprintln(w, renderTable([]string{"VERSION", "DESCRIPTION", "APPLIED"}, rows, isTerminal(w), pending))
	return err
}
