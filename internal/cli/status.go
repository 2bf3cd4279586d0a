package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show switchboard status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Switchboard %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Gateway: port=%d bind=%s auth=%s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, cfg.Gateway.Auth.Mode)
			fmt.Printf("Store:   backend=%s path=%s\n",
				cfg.Store.Backend, paths.StorePath(cfg.Store))

			reg, closeStore, err := loadRegistry(cfg)
			if err != nil {
				fmt.Printf("Agents:  error loading: %v\n", err)
			} else {
				defer closeStore()
				snap := reg.Snapshot()
				fmt.Printf("Agents:  %d configured, default=%s\n", snap.Len(), snap.DefaultAgentID())
				fmt.Printf("Routes:  %d binding(s)\n", len(snap.Bindings()))

				d := snap.Defaults()
				if d.MaxSpawnDepth != nil || d.MaxChildrenPerAgent != nil || d.MaxConcurrent != nil {
					fmt.Printf("Limits:  depth=%s children=%s concurrent=%s\n",
						formatLimit(d.MaxSpawnDepth),
						formatLimit(d.MaxChildrenPerAgent),
						formatLimit(d.MaxConcurrent))
				} else {
					fmt.Println("Limits:  (none — spawning unrestricted)")
				}

				beats := 0
				for _, a := range snap.Agents() {
					if a.Heartbeat != "" {
						beats++
					}
				}
				if beats > 0 {
					fmt.Printf("Beats:   %d agent(s) with heartbeat\n", beats)
				}
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func formatLimit(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
