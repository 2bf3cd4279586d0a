package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/switchboard/internal/config"
	"github.com/soyeahso/switchboard/internal/gateway"
	"github.com/soyeahso/switchboard/internal/heartbeat"
	"github.com/soyeahso/switchboard/internal/hooks"
	"github.com/soyeahso/switchboard/internal/registry"
	"github.com/soyeahso/switchboard/internal/routing"
	"github.com/soyeahso/switchboard/internal/spawn"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Manage the switchboard gateway server",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// Load raw config for RPC access
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				raw = make(map[string]any)
			}

			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			reg := registry.New(st, log)
			if err := reg.Load(); err != nil {
				return err
			}

			hookMgr := hooks.NewManager(log)
			hooks.RegisterShell(hookMgr, cfg.Hooks)

			resolver := routing.NewResolver(reg, log)
			governor := spawn.NewGovernor(reg, log)

			// The scheduler broadcasts ticks through the server; the server
			// in turn reports schedules via status. Wire the tick through a
			// late-bound pointer to break the construction cycle.
			var srv *gateway.Server
			sched := heartbeat.NewScheduler(reg, log, func(agentID string) {
				if srv != nil {
					srv.Broadcast("heartbeat.tick", map[string]any{"agentId": agentID})
				}
			})

			srv = gateway.New(cfg, log,
				gateway.WithConfigRaw(raw),
				gateway.WithRegistry(reg),
				gateway.WithResolver(resolver),
				gateway.WithGovernor(governor),
				gateway.WithScheduler(sched),
				gateway.WithHooks(hookMgr),
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(ctx) })
			g.Go(func() error { return sched.Run(ctx) })

			if cfg.Store.Backend == "file" && cfg.Watch.Enabled {
				watcher := registry.NewWatcher(reg, paths.StorePath(cfg.Store), log)
				watcher.OnReload(func() {
					hookMgr.EmitAsync(ctx, hooks.EventConfigReloaded, nil)
				})
				g.Go(func() error { return watcher.Run(ctx) })
			}

			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (auto, lan, loopback, custom)")

	return cmd
}
