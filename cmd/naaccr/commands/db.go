package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rwaitman/naaccr-tumor-data/db"
	"github.com/rwaitman/naaccr-tumor-data/display"
	"github.com/rwaitman/naaccr-tumor-data/errors"
	"github.com/rwaitman/naaccr-tumor-data/logger"
	"github.com/rwaitman/naaccr-tumor-data/store"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the fact database",
	Long: `db - Inspect the naaccr fact database

Examples:
  naaccr db stats                 # Layouts, batches, facts and anomalies
  naaccr db stats --db other.db   # Another database
  naaccr db batch <id>            # One ingest batch`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

var dbBatchCmd = &cobra.Command{
	Use:   "batch <id>",
	Short: "Show one ingest batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runDbBatch,
}

var dbPath string

func init() {
	DbCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: database.path)")
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbBatchCmd)
}

func openFactStore() (*store.FactStore, func(), string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, "", err
	}
	path := dbPath
	if path == "" {
		path = cfg.GetDatabasePath()
	}
	database, err := openDatabase(cfg, path)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed to open database")
	}
	return store.NewFactStore(database, logger.ComponentLogger("store")), func() { database.Close() }, path, nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	facts, closeDB, path, err := openFactStore()
	if err != nil {
		return err
	}
	defer closeDB()

	stats, err := facts.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{
			"path":  path,
			"stats": stats,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Database Statistics")
	fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintf(out, "Database Path:  %s\n", path)
	fmt.Fprintf(out, "Layouts:        %d\n", stats.Layouts)
	fmt.Fprintf(out, "Ingest Batches: %d\n", stats.Batches)
	fmt.Fprintf(out, "Records:        %d\n", stats.Records)
	fmt.Fprintf(out, "Facts:          %d\n", stats.Facts)
	fmt.Fprintln(out)

	if err := display.Table(out, []string{"Fact kind", "Count"}, countRows(stats.ByKind)); err != nil {
		return err
	}
	if len(stats.Anomalies) == 0 {
		fmt.Fprintln(out, "No anomalies recorded")
		return nil
	}
	return display.Table(out, []string{"Anomaly", "Count"}, countRows(stats.Anomalies))
}

func runDbBatch(cmd *cobra.Command, args []string) error {
	facts, closeDB, _, err := openFactStore()
	if err != nil {
		return err
	}
	defer closeDB()

	b, err := facts.Batch(cmd.Context(), args[0])
	if err != nil {
		if db.IsDatabaseClosed(err) {
			return errors.Wrap(err, "database closed while reading batch")
		}
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), b)
	}

	finished := "-"
	if b.FinishedAt != nil {
		finished = b.FinishedAt.Format("2006-01-02 15:04:05")
	}
	return display.Table(cmd.OutOrStdout(), []string{"Field", "Value"}, [][]string{
		{"ID", b.ID},
		{"Source", b.Source},
		{"Status", b.Status},
		{"Started", b.StartedAt.Format("2006-01-02 15:04:05")},
		{"Finished", finished},
		{"Lines read", strconv.Itoa(b.LinesRead)},
		{"Rows decoded", strconv.Itoa(b.RowsDecoded)},
		{"Facts written", strconv.Itoa(b.FactsWritten)},
		{"Anomalies", strconv.Itoa(b.Anomalies)},
	})
}

func countRows(m map[string]int) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(m[k])})
	}
	return rows
}
