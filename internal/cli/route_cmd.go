package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/domain"
	"github.com/soyeahso/switchboard/internal/routing"
)

func newRouteCmd() *cobra.Command {
	var (
		channel string
		account string
		peer    string
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Preview which agent would handle an event",
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

			resolver := routing.NewResolver(reg, log)
			decision, err := resolver.TestRouting(domain.MatchContext{
				Channel:   channel,
				AccountID: account,
				Peer:      peer,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Agent:   %s", decision.AgentID)
			if decision.AgentName != "" {
				fmt.Printf(" (%s)", decision.AgentName)
			}
			fmt.Println()
			if decision.Matched {
				fmt.Printf("Matched: binding %d\n", decision.BindingIndex)
			} else {
				fmt.Println("Matched: no binding — default agent")
			}
			if decision.Workspace != "" {
				fmt.Printf("Workdir: %s\n", decision.Workspace)
			}
			if decision.Model != "" {
				fmt.Printf("Model:   %s\n", decision.Model)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "event channel")
	cmd.Flags().StringVar(&account, "account", "", "event account id")
	cmd.Flags().StringVar(&peer, "peer", "", "event peer")

	return cmd
}
