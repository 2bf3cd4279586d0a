package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
	}

	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentInfoCmd())
	cmd.AddCommand(newAgentAddCmd())
	cmd.AddCommand(newAgentRemoveCmd())
	cmd.AddCommand(newAgentSetDefaultCmd())
	return cmd
}

func newAgentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
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

			for _, a := range reg.Snapshot().Agents() {
				def := ""
				if a.IsDefault {
					def = " (default)"
				}
				spawn := "-"
				if a.AllowedSubagents != nil {
					spawn = strings.Join(*a.AllowedSubagents, ",")
				}
				fmt.Printf("  %-16s %-20s spawns=%s%s\n", a.ID, a.Name, spawn, def)
			}
			return nil
		},
	}
}

func newAgentInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <agent-id>",
		Short: "Show details about an agent",
		Args:  cobra.ExactArgs(1),
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

			a, ok := reg.Snapshot().Agent(args[0])
			if !ok {
				return fmt.Errorf("agent not found: %s", args[0])
			}

			fmt.Printf("Agent: %s (%s)\n", a.ID, a.Name)
			if a.Workspace != "" {
				fmt.Printf("  Workspace: %s\n", a.Workspace)
			}
			if a.ModelOverride != "" {
				fmt.Printf("  Model:     %s\n", a.ModelOverride)
			}
			if a.Heartbeat != "" {
				fmt.Printf("  Heartbeat: %s\n", a.Heartbeat)
			}
			fmt.Printf("  Sandbox:   %v\n", a.Sandbox)
			fmt.Printf("  Default:   %v\n", a.IsDefault)
			if a.AllowedSubagents != nil {
				fmt.Printf("  Spawns:    %s\n", strings.Join(*a.AllowedSubagents, ", "))
			} else {
				fmt.Println("  Spawns:    (none)")
			}
			return nil
		},
	}
}

func newAgentAddCmd() *cobra.Command {
	var (
		name      string
		workspace string
		model     string
		heartbeat string
		allow     []string
	)

	cmd := &cobra.Command{
		Use:   "add <agent-id>",
		Short: "Add a new agent",
		Args:  cobra.ExactArgs(1),
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

			agent := domain.Agent{
				ID:            args[0],
				Name:          name,
				Workspace:     workspace,
				ModelOverride: model,
				Heartbeat:     heartbeat,
			}
			if cmd.Flags().Changed("allow") {
				agent.AllowedSubagents = &allow
			}

			if err := reg.CreateAgent(agent); err != nil {
				return err
			}
			fmt.Printf("Added agent %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&workspace, "workspace", "", "working directory")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&heartbeat, "heartbeat", "", "heartbeat cron spec (e.g. @every 30m)")
	cmd.Flags().StringSliceVar(&allow, "allow", nil, "agent ids this agent may spawn")

	return cmd
}

func newAgentRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <agent-id>",
		Short: "Remove an agent and its bindings",
		Args:  cobra.ExactArgs(1),
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

			if err := reg.DeleteAgent(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed agent %s\n", args[0])
			return nil
		},
	}
}

func newAgentSetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <agent-id>",
		Short: "Make an agent the default fallback",
		Args:  cobra.ExactArgs(1),
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

			if err := reg.SetDefaultAgent(args[0]); err != nil {
				return err
			}
			fmt.Printf("Default agent is now %s\n", args[0])
			return nil
		},
	}
}
