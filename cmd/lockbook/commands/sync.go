package commands

import (
	"fmt"

	"github.com/lockbook/lockbook-core/internal/bytesize"
	"github.com/lockbook/lockbook-core/internal/cli/output"
	"github.com/lockbook/lockbook-core/pkg/events"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync this account's files with the server",
	Long: `Push local changes, pull remote changes, and merge them into the
local file tree, printing each phase as it runs.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	out := cmd.OutOrStdout()
	progress := func(e events.Event) {
		if e.Kind != events.KindSyncProgress {
			return
		}
		if e.FileID != nil {
			fmt.Fprintf(out, "  %s %s\n", e.Phase, e.FileID)
		} else {
			fmt.Fprintf(out, "  %s\n", e.Phase)
		}
	}

	if err := eng.Sync(ctx, progress); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	fmt.Fprintln(out, "Sync complete.")
	return nil
}

var calculateWorkCmd = &cobra.Command{
	Use:   "calculate-work",
	Short: "Preview what the next sync would do",
	RunE:  runCalculateWork,
}

type workUnitTable struct{ units []engineWorkUnit }

type engineWorkUnit struct {
	ID     string
	Remote bool
}

func (t workUnitTable) Headers() []string { return []string{"FILE ID", "DIRECTION"} }
func (t workUnitTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.units))
	for _, u := range t.units {
		dir := "push"
		if u.Remote {
			dir = "pull"
		}
		rows = append(rows, []string{u.ID, dir})
	}
	return rows
}

func runCalculateWork(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	work, err := eng.CalculateWork(ctx)
	if err != nil {
		return fmt.Errorf("calculate work: %w", err)
	}
	if len(work) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync.")
		return nil
	}
	units := make([]engineWorkUnit, len(work))
	for i, w := range work {
		units[i] = engineWorkUnit{ID: w.ID.String(), Remote: w.Remote}
	}
	output.PrintTable(cmd.OutOrStdout(), workUnitTable{units: units})
	return nil
}

var getUsageCmd = &cobra.Command{
	Use:   "get-usage",
	Short: "Show storage usage against the account's data cap",
	RunE:  runGetUsage,
}

func runGetUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	eng, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	usage, err := eng.GetUsage(ctx)
	if err != nil {
		return fmt.Errorf("get usage: %w", err)
	}

	capStr := "unlimited"
	if usage.Cap > 0 {
		capStr = bytesize.ByteSize(usage.Cap).String()
	}

	data := output.NewTableData("METRIC", "VALUE")
	data.AddRow("used", bytesize.ByteSize(usage.Used).String())
	data.AddRow("cap", capStr)
	data.AddRow("files tracked", fmt.Sprintf("%d", len(usage.PerFile)))
	output.PrintTable(cmd.OutOrStdout(), data)
	return nil
}
