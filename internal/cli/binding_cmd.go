package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
)

func newBindingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "binding",
		Short: "Manage routing bindings",
	}

	cmd.AddCommand(newBindingListCmd())
	cmd.AddCommand(newBindingAddCmd())
	cmd.AddCommand(newBindingRemoveCmd())
	return cmd
}

func formatRule(r domain.MatchRule) string {
	if r.IsCatchAll() {
		return "*"
	}
	out := ""
	if r.Channel != "" {
		out += "channel=" + r.Channel + " "
	}
	if r.AccountID != "" {
		out += "account=" + r.AccountID + " "
	}
	if r.Peer != "" {
		out += "peer=" + r.Peer + " "
	}
	return out[:len(out)-1]
}

func newBindingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bindings in evaluation order",
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

			snap := reg.Snapshot()
			for i, b := range snap.Bindings() {
				fmt.Printf("  [%d] %-40s -> %s\n", i, formatRule(b.Match), b.AgentID)
			}
			fmt.Printf("  [*] (no match)%27s -> %s\n", "", snap.DefaultAgentID())
			return nil
		},
	}
}

func newBindingAddCmd() *cobra.Command {
	var (
		channel string
		account string
		peer    string
	)

	cmd := &cobra.Command{
		Use:   "add <agent-id>",
		Short: "Append a binding routing matching events to an agent",
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

			b := domain.Binding{
				Match:   domain.MatchRule{Channel: channel, AccountID: account, Peer: peer},
				AgentID: args[0],
			}
			if err := reg.CreateBinding(b); err != nil {
				return err
			}
			fmt.Printf("Bound %s -> %s\n", formatRule(b.Match), args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "match events from this channel")
	cmd.Flags().StringVar(&account, "account", "", "match events for this account id")
	cmd.Flags().StringVar(&peer, "peer", "", "match events from this peer")

	return cmd
}

func newBindingRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <index>",
		Short: "Remove the binding at the given position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index: %s", args[0])
			}

			cfg, err := config.Load(paths.Config)
			if err != nil {
				cfg = config.Defaults()
			}

			reg, closeStore, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := reg.DeleteBinding(index); err != nil {
				return err
			}
			fmt.Printf("Removed binding %d\n", index)
			return nil
		},
	}
}
