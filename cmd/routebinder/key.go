package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"routebinder/internal/binder"
)

func bindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bind <truck-key>",
		Short: "Bind this device to a truck key and load its route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), false, func(ctx context.Context, s *session) error {
				if err := s.binder.BindTruckKey(ctx, args[0]); err != nil {
					if errors.Is(err, binder.ErrKeyRejected) || errors.Is(err, binder.ErrMalformedBootstrap) {
						return errors.New("invalid truck key")
					}
					return err
				}
				if jsonOutput() {
					return printJSON(map[string]any{"truck": s.binder.Truck(), "stats": s.binder.Stats()})
				}
				printBoot(s.binder)
				return nil
			})
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the truck key and every saved route and export on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), false, func(ctx context.Context, s *session) error {
				s.binder.ResetTruckKey()
				fmt.Println("Truck key cleared.")
				return nil
			})
		},
	}
}

func freshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fresh",
		Short: "Drop saved progress for this truck and reload the route from the hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				if err := s.binder.StartFreshRun(ctx); err != nil {
					return err
				}
				printBoot(s.binder)
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the bound truck, progress and the active stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				b := s.binder
				active, hasActive := b.ActiveStop()
				if jsonOutput() {
					out := map[string]any{
						"truck":    b.Truck(),
						"stats":    b.Stats(),
						"progress": b.ProgressPercent(),
						"state":    b.State(),
					}
					if hasActive {
						out["activeStop"] = active
						out["activeElapsedSec"] = b.ActiveElapsed()
					}
					return printJSON(out)
				}

				printBoot(b)
				if !hasActive {
					return nil
				}
				fmt.Println()
				printStop(active)
				if active.Progress.ArrivedAtTs != nil {
					fmt.Printf("On site %s\n", formatSeconds(b.ActiveElapsed()))
				}
				if next, ok := b.NextStop(); ok {
					fmt.Printf("Next: %s  %s\n", next.ID, next.Site.SlangName)
				}
				if n := len(b.State().InboxItems); n > 0 {
					fmt.Printf("%d inbox item(s) waiting\n", n)
				}
				return nil
			})
		},
	}
}
