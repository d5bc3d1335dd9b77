package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/solasta/solasta/pkg/capability"
)

func newCapabilitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the built-in capabilities",
		Long: `List the capabilities steps can invoke, with their parameter schemas.

These are the same capabilities the executor dispatches to while running
a plan; the listing matches GET /api/capabilities on the service.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			registry := capability.NewRegistry(0, zerolog.Nop())
			capability.RegisterBuiltins(registry)
			descriptors := registry.List()

			if jsonOutput {
				data, err := json.MarshalIndent(descriptors, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			for _, d := range descriptors {
				fmt.Printf("%s\n    %s\n", d.Name, d.Description)
				if d.ParamSchema != "" {
					fmt.Printf("    params: %s\n", d.ParamSchema)
				}
			}
			return nil
		},
	}
}
