package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newGoalCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Inspect stored goals",
	}

	cmd.AddCommand(newGoalListCommand(version))
	cmd.AddCommand(newGoalShowCommand(version))
	cmd.AddCommand(newGoalLogsCommand(version))

	return cmd
}

func newGoalListCommand(version string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApp(cmd.Context(), version)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			goals, err := app.store.ListGoals(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(goals)
			}
			for _, g := range goals {
				fmt.Printf("%s  %-10s  %s  %s\n",
					g.ID, g.Status, g.CreatedAt.Format(time.DateTime), g.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum goals to list")
	return cmd
}

func newGoalShowCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show a goal and its active plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), version)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			goal, err := app.store.GetGoal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			plan, err := app.store.GetActivePlan(cmd.Context(), goal.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(map[string]interface{}{"goal": goal, "plan": plan})
			}

			fmt.Printf("goal %s  %s\n  %s\n", goal.ID, goal.Status, goal.Text)
			if goal.Error != "" {
				fmt.Printf("  error: %s\n", goal.Error)
			}
			if plan == nil {
				fmt.Println("  no active plan")
				return nil
			}
			fmt.Printf("plan %s  version %d\n", plan.ID, plan.Version)
			for _, step := range plan.Steps {
				fmt.Printf("  [%-11s] %s  %s\n", step.Status, step.ID, step.Title)
			}
			return nil
		},
	}
}

func newGoalLogsCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <goal-id>",
		Short: "Show the generation audit trail for a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), version)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			logs, err := app.store.GetAgentLogs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(logs)
			}
			for _, entry := range logs {
				line := fmt.Sprintf("%s  %-9s  %s/%s  %dms",
					entry.CreatedAt.Format(time.TimeOnly), entry.Role,
					entry.Provider, entry.Model, entry.LatencyMS)
				if entry.Error != "" {
					line += "  error: " + entry.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
