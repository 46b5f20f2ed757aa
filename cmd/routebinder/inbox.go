package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"routebinder/internal/binder"
	"routebinder/internal/models"
)

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List stops dispatch has proposed for this route",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				s.binder.SetMode(models.ModeInbox)
				items := s.binder.State().InboxItems
				if jsonOutput() {
					return printJSON(items)
				}
				if len(items) == 0 {
					fmt.Println("Inbox is empty.")
					return nil
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "From", "Received", "Title", "Site", "Window"})
				for _, item := range items {
					p := item.DecodePayload()
					open, closed := binder.ParseWindow(p.Window)
					window := ""
					if open != "" || closed != "" {
						window = open + " - " + closed
					}
					tw.AppendRow(table.Row{item.ID, item.From, item.ReceivedAt, item.Title, firstNonBlank(p.Name, p.SlangName), window})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.AddCommand(inboxAcceptCmd(), inboxRejectCmd())
	return cmd
}

func inboxAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <inbox-id>",
		Short: "Add an inbox item to the route right after the active stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				stopID, ok := s.binder.AcceptInboxItem(args[0])
				if !ok {
					return fmt.Errorf("no inbox item %s", args[0])
				}
				fmt.Printf("Added stop %s\n", stopID)
				return nil
			})
		},
	}
}

func inboxRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <inbox-id>",
		Short: "Discard an inbox item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), true, func(ctx context.Context, s *session) error {
				if !s.binder.RejectInboxItem(args[0]) {
					return fmt.Errorf("no inbox item %s", args[0])
				}
				fmt.Println("Discarded.")
				return nil
			})
		},
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
