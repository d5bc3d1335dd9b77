package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solasta/solasta/pkg/engine"
)

func newRunCommand(version string) *cobra.Command {
	var (
		owner   string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Run one goal to completion",
		Long: `Submit a goal and follow its progress until it completes or fails.

The goal text is planned into a step graph, executed through the
registered capabilities, and replanned on failure, exactly as under
serve. Progress events print as they happen.`,
		Example: `  # Run a goal with the default config
  solasta run "plan a study schedule for the next two weeks"

  # Run with an owner and JSON event output
  solasta run --owner alice --json "outline a blog series on tides"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			app, err := buildApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			// Subscribe before submitting so no early event is missed. The
			// goal ID is unknown until submission, so listen to everything
			// and filter below.
			subID, events := app.tel.Bus.Subscribe("")
			defer app.tel.Bus.Unsubscribe(subID)

			goal, err := app.engine.SubmitGoal(ctx, owner, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("goal %s accepted\n", goal.ID)

			for {
				select {
				case <-ctx.Done():
					return fmt.Errorf("goal %s did not finish: %w", goal.ID, ctx.Err())

				case event, open := <-events:
					if !open {
						return fmt.Errorf("event stream closed before goal %s finished", goal.ID)
					}
					if event.GoalID != goal.ID {
						continue
					}
					printEvent(event)
					if !event.Type.IsTerminal() {
						continue
					}
					return reportOutcome(ctx, app, goal.ID)
				}
			}
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "goal owner recorded on submission")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort if the goal is not terminal in time")

	return cmd
}

func printEvent(event *engine.StreamEvent) {
	if jsonOutput {
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}

	line := fmt.Sprintf("[%s] %s", event.Timestamp.Format(time.TimeOnly), event.Type)
	if len(event.Payload) > 0 {
		if data, err := json.Marshal(event.Payload); err == nil {
			line += " " + string(data)
		}
	}
	fmt.Println(line)
}

// reportOutcome prints the final goal state and returns an error for a
// failed goal so the process exit code reflects the run.
func reportOutcome(ctx context.Context, app *app, goalID string) error {
	goal, err := app.store.GetGoal(ctx, goalID)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(goal, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("goal %s finished: %s\n", goal.ID, goal.Status)
	}

	if goal.Status == engine.GoalStatusFailed {
		return fmt.Errorf("goal failed: %s", goal.Error)
	}
	return nil
}
