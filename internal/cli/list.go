package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/workhub/internal/filter"
	"github.com/nhle/workhub/internal/hubapi"
	"github.com/nhle/workhub/internal/logger"
	"github.com/nhle/workhub/internal/model"
)

func newClient(cfg *model.AppConfig) (*hubapi.Client, error) {
	tok, err := token()
	if err != nil {
		return nil, err
	}
	if tok == "" {
		return nil, fmt.Errorf("not signed in: run `workhub login` first")
	}

	nz := hubapi.NewNormalizer()
	nz.Language = cfg.Sync.Language

	return hubapi.NewClient(cfg.API.BaseURL, tok,
		hubapi.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		hubapi.WithMaxRetries(cfg.API.MaxRetries),
		hubapi.WithSnapshotSize(cfg.API.SnapshotSize),
		hubapi.WithNormalizer(nz),
		hubapi.WithLogger(logger.WithComponent("hubapi")),
	), nil
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		tab, event, read, search string
		page                     int
		asJSON                   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(opts.cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			ns, err := client.FetchSnapshot(ctx, hubapi.SnapshotOptions{})
			if err != nil {
				return err
			}

			matched := filter.Apply(ns, filter.Options{
				Tab:       filter.ParseTab(tab),
				EventType: event,
				Read:      filter.ReadFilter(read),
				Search:    search,
			})
			p := filter.Paginate(matched, page, opts.cfg.Display.PageSize)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p.Items)
			}

			for _, n := range p.Items {
				fmt.Fprintf(out, "%-12s %s\n", n.ID, formatLine(n))
			}
			fmt.Fprintf(out, "page %d/%d, %d matching\n", p.Number, p.TotalPages, p.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "all", "Tab: all, unread, tasks, projects, team")
	cmd.Flags().StringVar(&event, "event", "", "Only this event type (e.g. REVIEW_REQUESTED)")
	cmd.Flags().StringVar(&read, "read", "all", "Read state: all, unread, read")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive search term")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the page as JSON")
	return cmd
}

func newReadCommand(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "read [id...]",
		Short: "Mark notifications read",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("pass notification ids or --all")
			}

			client, err := newClient(opts.cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			ids := args
			if all {
				ns, err := client.FetchSnapshot(ctx, hubapi.SnapshotOptions{})
				if err != nil {
					return err
				}
				ids = ids[:0:0]
				for _, n := range ns {
					if !n.Read {
						ids = append(ids, n.ID)
					}
				}
			}

			if err := client.MarkManyRead(ctx, ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notification(s) read\n", len(ids))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Mark every unread notification read")
	return cmd
}
