package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"routebinder/internal/binder"
	"routebinder/internal/models"
)

func jsonOutput() bool {
	return viper.GetBool("json")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printStops(stops []models.Stop, activeID string) {
	tw := newTable()
	tw.AppendHeader(table.Row{"", "#", "ID", "Site", "Address", "Status", "Arrived", "Done", "Time"})
	for _, s := range stops {
		cursor := ""
		if s.ID == activeID {
			cursor = "▶"
		}
		name := s.Site.SlangName
		if s.Meta.Injected {
			name += " (inbox)"
		}
		tw.AppendRow(table.Row{
			cursor,
			s.Order,
			s.ID,
			name,
			s.Site.AddressLine(),
			string(s.Status()),
			s.Progress.ArrivedAt,
			s.Progress.CompleteAt,
			durationText(s),
		})
	}
	tw.Render()
}

func printStop(s models.Stop) {
	tw := newTable()
	tw.SetTitle(fmt.Sprintf("%s  %s", s.ID, s.Site.SlangName))
	tw.AppendRow(table.Row{"Route", s.Site.RouteNumber})
	tw.AppendRow(table.Row{"Address", s.Site.AddressLine()})
	if s.Site.Geo.HasLocation() {
		tw.AppendRow(table.Row{"Location", fmt.Sprintf("%.5f, %.5f (%s)", *s.Site.Geo.Lat, *s.Site.Geo.Lon, s.Site.Geo.Source)})
	}
	tw.AppendRow(table.Row{"Service days", s.Schedule.ServiceDays})
	tw.AppendRow(table.Row{"First completion", s.Schedule.FirstCompletionTime})
	tw.AppendRow(table.Row{"Open / close", strings.Trim(s.Schedule.TimeOpen+" / "+s.Schedule.TimeClosed, " /")})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Plow", checkMark(s.Checks.PlowDone) + plowText(s.Work.Plow)})
	if s.RequiresSalt() {
		tw.AppendRow(table.Row{"Salt", checkMark(s.Checks.SaltDone) + materialText(s.Work.Salt)})
	}
	if s.RequiresSidewalk() {
		tw.AppendRow(table.Row{"Sidewalk", checkMark(s.Checks.SidewalkDone) + materialText(s.Work.Sidewalk)})
	}
	tw.AppendRow(table.Row{"Satellite", checkMark(s.Checks.SatelliteChecked) + s.Work.Satellite.Salt})
	tw.AppendRow(table.Row{"Photo", checkMark(s.Checks.PhotoCaptured)})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Status", string(s.Status())})
	tw.AppendRow(table.Row{"Arrived", s.Progress.ArrivedAt})
	tw.AppendRow(table.Row{"Complete", s.Progress.CompleteAt})
	if s.SpecialNotes != "" {
		tw.AppendRow(table.Row{"Special notes", s.SpecialNotes})
	}
	if s.Notes != "" {
		tw.AppendRow(table.Row{"Notes", s.Notes})
	}
	tw.Render()
}

func printBoot(b *binder.Binder) {
	truck := b.Truck()
	st := b.Stats()
	fmt.Printf("%s  %s (truck %s)\n", truck.RouteName, truck.RouteLabel, truck.ID)
	fmt.Printf("%d of %d stops complete, %d%%\n", st.Complete, st.Total, b.ProgressPercent())
	if state := b.State(); state.RouteDoneAtTs != nil {
		fmt.Println("Route done.")
	}
}

func checkMark(done bool) string {
	if done {
		return "[x] "
	}
	return "[ ] "
}

func plowText(p models.Plow) string {
	parts := []string{}
	if p.TargetInches != nil {
		parts = append(parts, strconv.FormatFloat(*p.TargetInches, 'f', -1, 64)+" in")
	}
	if p.Notes != "" {
		parts = append(parts, p.Notes)
	}
	return strings.Join(parts, ", ")
}

func materialText(m models.Material) string {
	amount := ""
	if m.Amount != nil {
		amount = strconv.FormatFloat(*m.Amount, 'f', -1, 64) + " " + m.Unit
	}
	return strings.TrimSpace(strings.Join([]string{amount, m.Product}, " "))
}

func durationText(s models.Stop) string {
	if !s.IsComplete() {
		return ""
	}
	return formatSeconds(s.Progress.DurationSec)
}

func formatSeconds(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
