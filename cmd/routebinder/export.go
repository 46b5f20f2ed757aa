package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"routebinder/internal/models"
)

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Roll up the current run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				s.binder.SetMode(models.ModeSummary)
				sum := s.binder.Summary()
				if sum == nil {
					return errors.New("route has no stops")
				}
				if jsonOutput() {
					return printJSON(sum)
				}
				tw := newTable()
				tw.SetTitle(fmt.Sprintf("%s  %s (truck %s)", sum.RouteName, sum.RouteLabel, sum.Truck))
				tw.AppendRow(table.Row{"Stops complete", fmt.Sprintf("%d of %d", sum.CompletedStops, sum.TotalStops)})
				tw.AppendRow(table.Row{"All complete", sum.AllComplete})
				tw.AppendRow(table.Row{"Route span", formatSeconds(sum.RouteSpanSec)})
				tw.AppendRow(table.Row{"On site", formatSeconds(sum.OnSiteSec)})
				tw.AppendSeparator()
				tw.AppendRow(table.Row{"Salt stops", fmt.Sprintf("%d (%g total)", sum.SaltStops, sum.SaltTotal)})
				tw.AppendRow(table.Row{"Sidewalk stops", fmt.Sprintf("%d (%g total)", sum.SidewalkStops, sum.SidewalkTotal)})
				tw.AppendRow(table.Row{"Added from inbox", sum.InjectedCount})
				tw.AppendRow(table.Row{"Assists", sum.AssistCount})
				tw.AppendRow(table.Row{"Inbox remaining", sum.InboxRemaining})
				tw.Render()
				return nil
			})
		},
	}
}

func dismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss",
		Short: "Clear the route-done mark and keep working the route",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				s.binder.ClearRouteDone()
				fmt.Println("Route reopened.")
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var dir string
	var last bool
	cmd := &cobra.Command{
		Use:       "export <json|csv>",
		Short:     "Write the run to a JSON or CSV file",
		Args:      cobra.RangeArgs(0, 1),
		ValidArgs: []string{"json", "csv"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if last {
				return withSession(cmd.Context(), false, func(ctx context.Context, s *session) error {
					truckID := args0(args)
					if truckID == "" {
						return errors.New("usage: routebinder export --last <truck-id>")
					}
					raw, ok := s.store.LastExport(truckID)
					if !ok {
						return fmt.Errorf("no export recorded for truck %s", truckID)
					}
					_, err := os.Stdout.Write(append(raw, '\n'))
					return err
				})
			}

			format := args0(args)
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q (json, csv)", format)
			}
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				export := s.binder.ExportJSON
				if format == "csv" {
					export = s.binder.ExportCSV
				}
				file, err := export()
				if err != nil {
					return err
				}
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create %s: %w", dir, err)
				}
				path := filepath.Join(dir, file.Filename)
				if err := os.WriteFile(path, file.Body, 0o644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Println(path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", ".", "directory to write into")
	cmd.Flags().BoolVar(&last, "last", false, "print the last recorded export for a truck id instead")
	return cmd
}

func args0(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
