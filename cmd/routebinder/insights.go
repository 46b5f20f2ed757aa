package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"routebinder/internal/binder"
	"routebinder/internal/hub"
	"routebinder/internal/models"
)

func locateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate [stop-id]",
		Short: "Geocode a stop's address and save the location",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args)
				if err != nil {
					return err
				}
				res, err := s.binder.LocateStop(ctx, id)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(res)
				}
				fmt.Printf("%.5f, %.5f  %s (%s)\n", res.Lat, res.Lon, res.Label, res.Source)
				return nil
			})
		},
	}
}

func weatherCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "weather [stop-id]",
		Short: "Show current conditions at a located stop",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				tracker := hub.NewWeatherTracker(s.hub)
				if all {
					return weatherForRoute(ctx, s.binder, tracker)
				}

				id, err := stopArg(s.binder, args)
				if err != nil {
					return err
				}
				stop, ok := findStop(s.binder, id)
				if !ok {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				if !stop.Site.Geo.HasLocation() {
					return fmt.Errorf("stop %s has no location yet, run: routebinder locate %s", id, id)
				}
				resp, _, err := tracker.Prefetch(ctx, stop.Site.Geo)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return printJSON(resp)
				}
				printWeather(stop, resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "every located stop in route order")
	return cmd
}

// weatherForRoute walks the located stops in order. Neighbouring stops on the
// same point share one upstream call.
func weatherForRoute(ctx context.Context, b *binder.Binder, tracker *hub.WeatherTracker) error {
	tw := newTable()
	tw.AppendHeader(table.Row{"#", "ID", "Site", "Temp", "Conditions", "Lake effect"})
	var out []map[string]any
	for _, stop := range b.SortedStops() {
		if !stop.Site.Geo.HasLocation() {
			continue
		}
		resp, fetched, err := tracker.Prefetch(ctx, stop.Site.Geo)
		if err != nil {
			logger.Warn("weather lookup failed", zap.String("stop", stop.ID), zap.Error(err))
			continue
		}
		logger.Debug("weather", zap.String("stop", stop.ID), zap.Bool("fetched", fetched))
		if jsonOutput() {
			out = append(out, map[string]any{"stopId": stop.ID, "weather": resp})
			continue
		}
		temp, label, lake := weatherCells(resp)
		tw.AppendRow(table.Row{stop.Order, stop.ID, stop.Site.SlangName, temp, label, lake})
	}
	if jsonOutput() {
		return printJSON(out)
	}
	tw.Render()
	return nil
}

func printWeather(stop models.Stop, resp *models.WeatherResponse) {
	temp, label, lake := weatherCells(resp)
	fmt.Printf("%s  %s\n", stop.ID, stop.Site.SlangName)
	fmt.Printf("%s  %s\n", temp, label)
	if lake != "" {
		fmt.Printf("Lake effect: %s\n", lake)
	}
	if resp.Insight != nil && resp.Insight.LakeEffectNote != "" {
		fmt.Println(resp.Insight.LakeEffectNote)
	}
}

func weatherCells(resp *models.WeatherResponse) (temp, label, lake string) {
	if resp.Data != nil {
		unit := resp.Data.CurrentUnits["temperature_2m"]
		if unit == "" {
			unit = "°C"
		}
		temp = fmt.Sprintf("%.1f%s", resp.Data.Current.Temperature2m, unit)
	}
	if resp.Insight != nil {
		label, lake = resp.Insight.Label, resp.Insight.LakeEffect
	}
	return temp, label, lake
}
