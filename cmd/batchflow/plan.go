package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <tasks-file>",
	Short: "Show how a task list would be batched, without executing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		plan, _, err := loadPlan(args[0], cfg)
		if err != nil {
			return err
		}

		fmt.Printf("%d tasks, %d batches, %d groups\n\n", plan.TaskCount(), len(plan.Batches), len(plan.Groups))

		for _, group := range plan.Groups {
			fmt.Printf("group %d:\n", group.Index)
			for _, batch := range group.Batches {
				fmt.Printf("  %s batch (%s):", batch.Mode, batch.Domain())
				for _, t := range batch.Tasks {
					if t.Phase.String() != "none" {
						fmt.Printf(" %s[%s]", t.ID, t.Phase)
					} else {
						fmt.Printf(" %s", t.ID)
					}
				}
				fmt.Println()
			}
		}

		return nil
	},
}
