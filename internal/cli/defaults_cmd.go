package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
)

func newDefaultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show or set fleet-wide spawn limits",
	}

	cmd.AddCommand(newLimitsShowCmd())
	cmd.AddCommand(newLimitsSetCmd())
	return cmd
}

func newLimitsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current spawn limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			reg, closeStore, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			d := reg.Snapshot().Defaults()
			fmt.Printf("Max spawn depth:        %s\n", formatLimit(d.MaxSpawnDepth))
			fmt.Printf("Max children per agent: %s\n", formatLimit(d.MaxChildrenPerAgent))
			fmt.Printf("Max concurrent:         %s\n", formatLimit(d.MaxConcurrent))
			return nil
		},
	}
}

func newLimitsSetCmd() *cobra.Command {
	var (
		depth      int
		children   int
		concurrent int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set spawn limits (a negative value clears that limit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			reg, closeStore, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			d := reg.Snapshot().Defaults()
			if cmd.Flags().Changed("depth") {
				d.MaxSpawnDepth = limitValue(depth)
			}
			if cmd.Flags().Changed("children") {
				d.MaxChildrenPerAgent = limitValue(children)
			}
			if cmd.Flags().Changed("concurrent") {
				d.MaxConcurrent = limitValue(concurrent)
			}

			if err := reg.UpdateSubagentDefaults(d); err != nil {
				return err
			}
			fmt.Println("Spawn limits updated")
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 0, "max spawn chain depth")
	cmd.Flags().IntVar(&children, "children", 0, "max children per agent")
	cmd.Flags().IntVar(&concurrent, "concurrent", 0, "max concurrent active spawns")

	return cmd
}

func limitValue(v int) *int {
	if v < 0 {
		return nil
	}
	return &v
}
