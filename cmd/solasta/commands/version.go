package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if jsonOutput {
				data, err := json.MarshalIndent(map[string]string{
					"version":    version,
					"commit":     commit,
					"build_date": buildDate,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("solasta %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	}
}
