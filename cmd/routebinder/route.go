package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"routebinder/internal/binder"
	"routebinder/internal/models"
)

func stopsCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "stops",
		Short: "List the route's stops in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				if cmd.Flags().Changed("filter") {
					f := models.QueueFilter(filter)
					if f != models.QueueFilterAll && f != models.QueueFilterPending && f != models.QueueFilterComplete {
						return fmt.Errorf("unknown filter %q (all, pending, complete)", filter)
					}
					s.binder.SetQueueFilter(f)
				}
				s.binder.SetMode(models.ModeQueue)
				stops := s.binder.QueueStops()
				if jsonOutput() {
					return printJSON(stops)
				}
				printStops(stops, s.binder.State().ActiveStopID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, pending or complete (remembered)")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [stop-id]",
		Short: "Show one stop, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args)
				if err != nil {
					return err
				}
				stop, ok := findStop(s.binder, id)
				if !ok {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				if jsonOutput() {
					return printJSON(stop)
				}
				printStop(stop)
				return nil
			})
		},
	}
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <stop-id>",
		Short: "Make a stop the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				if !s.binder.SelectStop(args[0]) {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, args[0])
				}
				fmt.Printf("Active stop: %s\n", args[0])
				return nil
			})
		},
	}
}

func arriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arrive [stop-id]",
		Short: "Record arrival at a stop",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args)
				if err != nil {
					return err
				}
				if !s.binder.MarkArrived(id) {
					stop, ok := findStop(s.binder, id)
					if !ok {
						return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
					}
					fmt.Printf("Already arrived at %s (%s)\n", id, stop.Progress.ArrivedAt)
					return nil
				}
				stop, _ := findStop(s.binder, id)
				fmt.Printf("Arrived at %s  %s\n", stop.Progress.ArrivedAt, stop.Site.SlangName)
				return nil
			})
		},
	}
}

var checkItems = map[string]func(on bool) *models.ChecksPatch{
	"plow":      func(on bool) *models.ChecksPatch { return &models.ChecksPatch{PlowDone: &on} },
	"salt":      func(on bool) *models.ChecksPatch { return &models.ChecksPatch{SaltDone: &on} },
	"sidewalk":  func(on bool) *models.ChecksPatch { return &models.ChecksPatch{SidewalkDone: &on} },
	"satellite": func(on bool) *models.ChecksPatch { return &models.ChecksPatch{SatelliteChecked: &on} },
	"photo":     func(on bool) *models.ChecksPatch { return &models.ChecksPatch{PhotoCaptured: &on} },
}

func checkCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "check <plow|salt|sidewalk|satellite|photo> [stop-id]",
		Short: "Tick a work item on an arrived stop",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			build, ok := checkItems[strings.ToLower(args[0])]
			if !ok {
				return fmt.Errorf("unknown item %q", args[0])
			}
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args[1:])
				if err != nil {
					return err
				}
				stop, found := findStop(s.binder, id)
				if !found {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				if stop.Progress.ArrivedAtTs == nil {
					return errors.New("arrive at the stop before checking off work")
				}
				s.binder.UpdateStop(id, models.StopPatch{Checks: build(!off)})
				stop, _ = findStop(s.binder, id)
				if jsonOutput() {
					return printJSON(stop.Checks)
				}
				fmt.Printf("%s %s\n", checkMark(!off), args[0])
				if binder.CanComplete(stop) {
					fmt.Println("Ready to complete.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "untick instead")
	return cmd
}

func completeCmd() *cobra.Command {
	var next bool
	cmd := &cobra.Command{
		Use:   "complete [stop-id]",
		Short: "Complete a stop once its required work is checked off",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args)
				if err != nil {
					return err
				}
				stop, found := findStop(s.binder, id)
				if !found {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				if !s.binder.MarkComplete(id) {
					return fmt.Errorf("stop %s cannot be completed yet: %s", id, missingWork(stop))
				}
				stop, _ = findStop(s.binder, id)
				fmt.Printf("Completed %s at %s after %s\n", id, stop.Progress.CompleteAt, formatSeconds(stop.Progress.DurationSec))
				if next {
					return advance(s.binder)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&next, "next", false, "advance to the next stop afterwards")
	return cmd
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo [stop-id]",
		Short: "Reopen a completed stop",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args)
				if err != nil {
					return err
				}
				if !s.binder.UndoComplete(id) {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				fmt.Printf("Reopened %s\n", id)
				return nil
			})
		},
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Move to the next stop once the active one is complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				return advance(s.binder)
			})
		},
	}
}

func prevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Move back one stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				if !s.binder.GoPrev() {
					return errors.New("already at the first stop")
				}
				active, _ := s.binder.ActiveStop()
				fmt.Printf("Active stop: %s  %s\n", active.ID, active.Site.SlangName)
				return nil
			})
		},
	}
}

func noteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <text> [stop-id]",
		Short: "Set the operator notes on a stop",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args[1:])
				if err != nil {
					return err
				}
				if !s.binder.UpdateStop(id, models.StopPatch{Notes: models.String(args[0])}) {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				fmt.Println("Notes saved.")
				return nil
			})
		},
	}
}

func materialCmd() *cobra.Command {
	var product, performedBy string
	cmd := &cobra.Command{
		Use:   "material <salt|sidewalk> <amount|none> [stop-id]",
		Short: "Record the amount of salt or sidewalk melt applied",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := strings.ToLower(args[0])
			if kind != "salt" && kind != "sidewalk" {
				return fmt.Errorf("unknown material %q", args[0])
			}
			patch := &models.MaterialPatch{Amount: models.SetNull[float64]()}
			if args[1] != "none" {
				amount, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid amount %q", args[1])
				}
				patch.Amount = models.SetTo(amount)
			}
			if product != "" {
				patch.Product = &product
			}
			if performedBy != "" {
				patch.PerformedBy = &performedBy
			}
			work := &models.WorkPatch{Salt: patch}
			if kind == "sidewalk" {
				work = &models.WorkPatch{Sidewalk: patch}
			}

			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				id, err := stopArg(s.binder, args[2:])
				if err != nil {
					return err
				}
				if !s.binder.UpdateStop(id, models.StopPatch{Work: work}) {
					return fmt.Errorf("%w: %s", binder.ErrStopNotFound, id)
				}
				stop, _ := findStop(s.binder, id)
				m := stop.Work.Salt
				if kind == "sidewalk" {
					m = stop.Work.Sidewalk
				}
				fmt.Printf("%s: %s\n", kind, materialText(m))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product name")
	cmd.Flags().StringVar(&performedBy, "by", "", "who applied it")
	return cmd
}

func advance(b *binder.Binder) error {
	if !b.GoNextLocked() {
		return errors.New("complete the active stop before moving on")
	}
	if b.State().RouteDoneAtTs != nil {
		fmt.Println("Route done. Run: routebinder export json")
		return nil
	}
	active, _ := b.ActiveStop()
	fmt.Printf("Active stop: %s  %s\n", active.ID, active.Site.SlangName)
	return nil
}

func findStop(b *binder.Binder, id string) (models.Stop, bool) {
	for _, s := range b.SortedStops() {
		if s.ID == id {
			return s, true
		}
	}
	return models.Stop{}, false
}

// missingWork names what still blocks completion
func missingWork(s models.Stop) string {
	if s.Progress.ArrivedAtTs == nil {
		return "not arrived"
	}
	if s.IsComplete() {
		return "already complete"
	}
	var missing []string
	if !s.Checks.PlowDone {
		missing = append(missing, "plow")
	}
	if s.RequiresSalt() && !s.Checks.SaltDone {
		missing = append(missing, "salt")
	}
	if s.RequiresSidewalk() && !s.Checks.SidewalkDone {
		missing = append(missing, "sidewalk")
	}
	return strings.Join(missing, ", ") + " not checked"
}
