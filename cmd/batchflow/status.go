package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/batchflow/internal/task"
	"github.com/aristath/batchflow/internal/tracker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show execution records and checkpoints from the last run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		tr, err := tracker.NewSQLiteTracker(ctx, cfg.Repo.StatePath)
		if err != nil {
			return err
		}
		defer tr.Close()

		records, err := tr.ListRecords(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no execution records")
			return nil
		}

		for _, rec := range records {
			line := fmt.Sprintf("%-12s %-12s", rec.TaskID, rec.Status)
			if rec.Status == task.StatusFailed || rec.Status == task.StatusBlocked {
				line += "  " + rec.Evidence
			}
			fmt.Println(line)
		}

		checkpoints, err := tr.Checkpoints(ctx)
		if err != nil {
			return err
		}
		if len(checkpoints) > 0 {
			fmt.Println()
			for _, cp := range checkpoints {
				fmt.Printf("checkpoint group %d  %.12s  %s\n", cp.GroupIndex, cp.CommitRef, cp.Timestamp.Format("2006-01-02 15:04:05"))
			}
		}

		return nil
	},
}
